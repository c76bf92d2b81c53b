// Package publisher announces final games and prediction lifecycle events on
// Redis streams.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fortuna/aurora/internal/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Stream names
const (
	StreamGamesFinal           = "games.final.nhl"
	StreamPredictionsCreated   = "predictions.created.nhl"
	StreamPredictionsEvaluated = "predictions.evaluated.nhl"
)

// Event types carried in the "type" field
const (
	EventGameFinal           = "game.final"
	EventPredictionCreated   = "prediction.created"
	EventPredictionEvaluated = "prediction.evaluated"
)

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client, logger *logrus.Logger) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, logger: logger}
}

// NewRedisPublisher connects to redisURL and creates a publisher
func NewRedisPublisher(redisURL string, logger *logrus.Logger) (*RedisStreamPublisher, error) {
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

	return NewRedisStreamPublisher(client, logger), nil
}

// Close closes the Redis connection
func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}

// PublishGameFinal announces a game that just became final
func (p *RedisStreamPublisher) PublishGameFinal(ctx context.Context, game *store.Game) error {
	return p.publish(ctx, StreamGamesFinal, EventGameFinal, game)
}

// PredictionCreated publishes a stored prediction. Failures are logged.
func (p *RedisStreamPublisher) PredictionCreated(ctx context.Context, prediction *store.Prediction) {
	if err := p.publish(ctx, StreamPredictionsCreated, EventPredictionCreated, prediction); err != nil {
		p.logger.WithError(err).WithField("game_id", prediction.GameID).Warn("Failed to publish prediction")
	}
}

// PredictionEvaluated publishes an evaluated prediction. Failures are logged.
func (p *RedisStreamPublisher) PredictionEvaluated(ctx context.Context, prediction *store.Prediction) {
	if err := p.publish(ctx, StreamPredictionsEvaluated, EventPredictionEvaluated, prediction); err != nil {
		p.logger.WithError(err).WithField("game_id", prediction.GameID).Warn("Failed to publish evaluation")
	}
}

func (p *RedisStreamPublisher) publish(ctx context.Context, stream, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"event_id":  uuid.NewString(),
			"type":      eventType,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}
