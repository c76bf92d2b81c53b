package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fortuna/aurora/internal/store"
	"github.com/fortuna/aurora/internal/store/memstore"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t    *testing.T
	repo *memstore.Store
	ctx  context.Context
	next int64
	day  time.Time
}

func newFixture(t *testing.T, teamIDs ...int64) *fixture {
	f := &fixture{
		t:    t,
		repo: memstore.New(),
		ctx:  context.Background(),
		day:  time.Date(2023, 10, 10, 0, 0, 0, 0, time.UTC),
	}
	for _, id := range teamIDs {
		_, err := f.repo.InsertTeamIfAbsent(f.ctx, &store.Team{TeamID: id, Name: "Team", Abbreviation: string(rune('A'+id)) + "TM"})
		require.NoError(t, err)
	}
	return f
}

// final stores a finished game one day after the previous fixture game
func (f *fixture) final(home, away int64, homeScore, awayScore int32, winType store.WinType) *store.Game {
	f.t.Helper()
	f.next++
	f.day = f.day.AddDate(0, 0, 1)

	game := &store.Game{
		GameID:     f.next,
		GameDate:   f.day,
		HomeTeamID: home,
		AwayTeamID: away,
		HomeScore:  sql.NullInt32{Int32: homeScore, Valid: true},
		AwayScore:  sql.NullInt32{Int32: awayScore, Valid: true},
		State:      store.StateFinal,
	}
	switch {
	case homeScore > awayScore:
		game.WinnerID = sql.NullInt64{Int64: home, Valid: true}
	case awayScore > homeScore:
		game.WinnerID = sql.NullInt64{Int64: away, Valid: true}
	}
	if game.WinnerID.Valid {
		game.WinType = sql.NullString{String: string(winType), Valid: true}
	}
	require.NoError(f.t, f.repo.UpsertGame(f.ctx, game))
	return game
}

func (f *fixture) scheduled(home, away int64) *store.Game {
	f.t.Helper()
	f.next++
	game := &store.Game{
		GameID:     f.next,
		GameDate:   f.day.AddDate(0, 0, 1),
		HomeTeamID: home,
		AwayTeamID: away,
		State:      store.StateScheduled,
	}
	require.NoError(f.t, f.repo.UpsertGame(f.ctx, game))
	return game
}

func TestRecordPoints(t *testing.T) {
	r := Record{Wins: 10, Losses: 5, OTLosses: 3}
	assert.Equal(t, 18, r.Decided())
	assert.Equal(t, 23, r.Points())
	assert.InDelta(t, 23.0/36.0, r.PointsPercentage(), 1e-9)

	assert.Zero(t, Record{}.PointsPercentage())
}

func TestTeamStatsAggregation(t *testing.T) {
	f := newFixture(t, 1, 2)
	for i := 0; i < 10; i++ {
		f.final(1, 2, 3, 1, store.WinRegulation)
	}
	for i := 0; i < 5; i++ {
		f.final(2, 1, 4, 1, store.WinRegulation)
	}
	for i := 0; i < 3; i++ {
		f.final(1, 2, 2, 3, store.WinOvertime)
	}
	f.final(1, 2, 2, 2, store.WinRegulation) // tie, no winner
	f.scheduled(1, 2)

	logger, _ := test.NewNullLogger()
	stats, err := NewStatsService(f.repo, logger).TeamStats(f.ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 18, stats.GamesPlayed)
	assert.Equal(t, 10, stats.Wins)
	assert.Equal(t, 5, stats.Losses)
	assert.Equal(t, 3, stats.OTLosses)
	assert.Equal(t, 23, stats.Points)
	assert.InDelta(t, 23.0/36.0, stats.PointsPercentage, 1e-9)
	assert.Equal(t, 41, stats.GoalsFor)
	assert.Equal(t, 39, stats.GoalsAgainst)
	assert.Equal(t, 2, stats.GoalDifferential)
	assert.InDelta(t, 41.0/18.0, stats.GoalsForPerGame, 1e-9)
	assert.InDelta(t, 39.0/18.0, stats.GoalsAgainstPerGame, 1e-9)
	assert.Equal(t, Record{Wins: 10, OTLosses: 3}, stats.Home)
	assert.Equal(t, Record{Losses: 5}, stats.Away)
	assert.Equal(t, Record{Losses: 2, OTLosses: 3}, stats.LastFive)

	opponent, err := NewStatsService(f.repo, logger).TeamStats(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, opponent.Wins)
	assert.Equal(t, 10, opponent.Losses)
	assert.Zero(t, opponent.OTLosses)
}

func TestTeamStatsWithoutGamesIsZero(t *testing.T) {
	f := newFixture(t, 1)
	logger, _ := test.NewNullLogger()

	stats, err := NewStatsService(f.repo, logger).TeamStats(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &TeamStats{TeamID: 1}, stats)
}

func TestTeamStatsUnknownTeam(t *testing.T) {
	f := newFixture(t)
	logger, _ := test.NewNullLogger()

	_, err := NewStatsService(f.repo, logger).TeamStats(f.ctx, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecentGames(t *testing.T) {
	f := newFixture(t, 1, 2)
	var last *store.Game
	for i := 0; i < 7; i++ {
		last = f.final(1, 2, 3, 1, store.WinRegulation)
	}
	logger, _ := test.NewNullLogger()

	games, err := NewStatsService(f.repo, logger).RecentGames(f.ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, games, 5)
	assert.Equal(t, last.GameID, games[0].GameID)
}
