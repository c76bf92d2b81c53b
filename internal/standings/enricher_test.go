package standings

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/fortuna/aurora/internal/nhl"
	"github.com/fortuna/aurora/internal/store"
	"github.com/fortuna/aurora/internal/store/memstore"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standingsFixture = `{"standings": [
  {"teamAbbrev": {"default": "TOR"}, "teamName": {"default": "Toronto Maple Leafs"},
   "conferenceName": "Eastern", "divisionName": "Atlantic",
   "wins": 25, "losses": 12, "otLosses": 6, "points": 56},
  {"teamAbbrev": {"default": "SEA"}, "teamName": {"default": "Seattle Kraken"},
   "conferenceName": "Western", "divisionName": "Pacific",
   "wins": 18, "losses": 20, "otLosses": 8, "points": 44},
  {"conferenceName": "Western"}
]}`

type stubFetcher struct {
	doc map[string]interface{}
	err error
}

func (f *stubFetcher) FetchStandings(ctx context.Context) (map[string]interface{}, error) {
	return f.doc, f.err
}

type recordingMirror struct {
	teams []TeamInfo
}

func (m *recordingMirror) StoreTeams(ctx context.Context, teams []TeamInfo) error {
	m.teams = teams
	return nil
}

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestEnrichUpdatesStoredTeamsOnly(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	_, err := repo.InsertTeamIfAbsent(ctx, &store.Team{TeamID: 10, Name: "Toronto Maple Leafs", Abbreviation: "TOR"})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	mirror := &recordingMirror{}
	enricher := NewEnricher(&stubFetcher{}, repo, logger).WithMirror(mirror)

	updated, err := enricher.Enrich(ctx, decode(t, standingsFixture))
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	team, err := repo.GetTeam(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Eastern", team.Conference.String)
	assert.Equal(t, "Atlantic", team.Division.String)
	assert.Equal(t, "Toronto Maple Leafs", team.Name)
	assert.Equal(t, 1, repo.Counts().Teams, "unmatched entries are never inserted")

	tor, ok := enricher.Cache().Get("TOR")
	require.True(t, ok)
	assert.Equal(t, int64(10), tor.ID)
	assert.Equal(t, SeasonRecord{Wins: 25, Losses: 12, OTLosses: 6, Points: 56}, tor.Record)

	sea, ok := enricher.Cache().Get("SEA")
	require.True(t, ok)
	assert.Zero(t, sea.ID)
	assert.Equal(t, "Pacific", sea.Division)

	assert.Equal(t, 2, enricher.Cache().Len())
	assert.Len(t, mirror.teams, 2)
}

func TestEnrichMergesIntoExistingCache(t *testing.T) {
	logger, _ := test.NewNullLogger()
	enricher := NewEnricher(&stubFetcher{}, memstore.New(), logger)
	enricher.Cache().Merge(TeamInfo{Abbreviation: "BOS", Name: "Boston Bruins"})

	_, err := enricher.Enrich(context.Background(), decode(t, standingsFixture))
	require.NoError(t, err)

	_, ok := enricher.Cache().Get("BOS")
	assert.True(t, ok, "cache is never cleared wholesale")
	assert.Equal(t, 3, enricher.Cache().Len())
}

func TestEnrichKeepsStoredStandingsWhenEntryIsPartial(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	_, err := repo.InsertTeamIfAbsent(ctx, &store.Team{TeamID: 10, Name: "Toronto Maple Leafs", Abbreviation: "TOR"})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	enricher := NewEnricher(&stubFetcher{}, repo, logger)

	_, err = enricher.Enrich(ctx, decode(t, standingsFixture))
	require.NoError(t, err)
	_, err = enricher.Enrich(ctx, decode(t, `{"standings": [{"teamAbbrev": {"default": "TOR"}, "wins": 30}]}`))
	require.NoError(t, err)

	team, err := repo.GetTeam(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Eastern", team.Conference.String)
	assert.Equal(t, "Atlantic", team.Division.String)

	cached, ok := enricher.Cache().Get("TOR")
	require.True(t, ok)
	assert.Equal(t, cached.Conference, team.Conference.String)
	assert.Equal(t, cached.Division, team.Division.String)
}

func TestRefreshFailures(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	enricher := NewEnricher(&stubFetcher{err: fmt.Errorf("%w: boom", nhl.ErrTimeout)}, memstore.New(), logger)
	_, err := enricher.Refresh(ctx)
	assert.ErrorIs(t, err, nhl.ErrTimeout)

	enricher = NewEnricher(&stubFetcher{doc: map[string]interface{}{}}, memstore.New(), logger)
	_, err = enricher.Refresh(ctx)
	assert.ErrorIs(t, err, nhl.ErrMissingKey)
	assert.Zero(t, enricher.Cache().Len())
}

func TestTeamCacheMergeKeepsKnownFields(t *testing.T) {
	cache := NewTeamCache()
	cache.Merge(TeamInfo{ID: 6, Abbreviation: "BOS", Name: "Boston Bruins", Conference: "Eastern"})
	cache.Merge(TeamInfo{Abbreviation: "BOS", Division: "Atlantic", Record: SeasonRecord{Wins: 3}})

	info, ok := cache.Get("BOS")
	require.True(t, ok)
	assert.Equal(t, TeamInfo{
		ID: 6, Abbreviation: "BOS", Name: "Boston Bruins", Conference: "Eastern", Division: "Atlantic",
		Record: SeasonRecord{Wins: 3},
	}, info)
}
