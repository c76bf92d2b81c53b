// Package cache mirrors the standings team cache into Redis so other
// processes can read it without calling the feed.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/fortuna/aurora/internal/standings"
	"github.com/redis/go-redis/v9"
)

const (
	standingsKey        = "standings:nhl"
	standingsUpdatedKey = "standings:nhl:updated_at"
)

// RedisCache handles the Redis side of the team cache
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// StoreTeams writes every team into the standings hash, keyed by abbreviation.
// Fields for teams not in teams are left in place.
func (rc *RedisCache) StoreTeams(ctx context.Context, teams []standings.TeamInfo) error {
	if len(teams) == 0 {
		return nil
	}

	values := make(map[string]interface{}, len(teams))
	for _, team := range teams {
		data, err := json.Marshal(team)
		if err != nil {
			return fmt.Errorf("encoding team %s: %w", team.Abbreviation, err)
		}
		values[team.Abbreviation] = string(data)
	}

	pipe := rc.client.TxPipeline()
	pipe.HSet(ctx, standingsKey, values)
	pipe.Set(ctx, standingsUpdatedKey, time.Now().UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing standings hash: %w", err)
	}
	return nil
}

// LoadTeams reads the mirrored teams ordered by abbreviation
func (rc *RedisCache) LoadTeams(ctx context.Context) ([]standings.TeamInfo, error) {
	raw, err := rc.client.HGetAll(ctx, standingsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("reading standings hash: %w", err)
	}

	teams := make([]standings.TeamInfo, 0, len(raw))
	for abbr, data := range raw {
		var team standings.TeamInfo
		if err := json.Unmarshal([]byte(data), &team); err != nil {
			return nil, fmt.Errorf("decoding team %s: %w", abbr, err)
		}
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Abbreviation < teams[j].Abbreviation })
	return teams, nil
}

// Warm merges the mirrored teams into a local cache and returns how many were loaded
func (rc *RedisCache) Warm(ctx context.Context, local *standings.TeamCache) (int, error) {
	teams, err := rc.LoadTeams(ctx)
	if err != nil {
		return 0, err
	}
	for _, team := range teams {
		local.Merge(team)
	}
	return len(teams), nil
}
