package rest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fortuna/aurora/internal/backfill"
	"github.com/fortuna/aurora/internal/service"
	"github.com/fortuna/aurora/internal/standings"
	"github.com/fortuna/aurora/internal/store"
	"github.com/fortuna/aurora/internal/store/memstore"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct{ err error }

func (c stubChecker) HealthCheck(ctx context.Context) error { return c.err }

type noopIngester struct{}

func (noopIngester) IngestDay(ctx context.Context, date string) (int, error) { return 0, nil }

type testEnv struct {
	repo   *memstore.Store
	router *mux.Router
	cache  *standings.TeamCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger, _ := test.NewNullLogger()
	ctx := context.Background()
	repo := memstore.New()

	for _, team := range []*store.Team{
		{TeamID: 10, Name: "Toronto Maple Leafs", Abbreviation: "TOR"},
		{TeamID: 8, Name: "Montréal Canadiens", Abbreviation: "MTL"},
	} {
		_, err := repo.InsertTeamIfAbsent(ctx, team)
		require.NoError(t, err)
	}

	require.NoError(t, repo.UpsertGame(ctx, &store.Game{
		GameID:     101,
		GameDate:   time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		HomeTeamID: 10,
		AwayTeamID: 8,
		HomeScore:  sql.NullInt32{Int32: 4, Valid: true},
		AwayScore:  sql.NullInt32{Int32: 2, Valid: true},
		State:      store.StateFinal,
		WinnerID:   sql.NullInt64{Int64: 10, Valid: true},
		WinType:    sql.NullString{String: string(store.WinRegulation), Valid: true},
	}))
	require.NoError(t, repo.UpsertGame(ctx, &store.Game{
		GameID:     102,
		GameDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		HomeTeamID: 8,
		AwayTeamID: 10,
		State:      store.StateScheduled,
	}))

	cache := standings.NewTeamCache()
	cache.Merge(standings.TeamInfo{Abbreviation: "TOR", Name: "Toronto Maple Leafs", Division: "Atlantic"})

	stats := service.NewStatsService(repo, logger)
	svc := Services{
		Games:       service.NewGameService(repo),
		Stats:       stats,
		Predictions: service.NewPredictionService(repo, stats, logger),
		Standings:   cache,
		Backfill:    backfill.NewService(backfill.NewRunner(noopIngester{}, logger), logger),
		Today:       func() string { return "2024-01-10" },
	}

	return &testEnv{repo: repo, router: NewRouter(svc, logger), cache: cache}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthCheck(t *testing.T) {
	logger, _ := test.NewNullLogger()

	router := NewRouter(Services{Checks: map[string]HealthChecker{"database": stubChecker{}}}, logger)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	router = NewRouter(Services{Checks: map[string]HealthChecker{"redis": stubChecker{err: errors.New("refused")}}}, logger)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}

func TestGetGamesByDate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/games?date=2024-01-09", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var games []struct {
		Game struct {
			GameID   int64  `json:"game_id"`
			GameDate string `json:"game_date"`
			WinnerID *int64 `json:"winner_id"`
		} `json:"game"`
		HomeTeam struct {
			Abbreviation string `json:"abbreviation"`
		} `json:"home_team"`
	}
	decode(t, rec, &games)
	require.Len(t, games, 1)
	assert.Equal(t, int64(101), games[0].Game.GameID)
	assert.Equal(t, "2024-01-09", games[0].Game.GameDate)
	require.NotNil(t, games[0].Game.WinnerID)
	assert.Equal(t, int64(10), *games[0].Game.WinnerID)
	assert.Equal(t, "TOR", games[0].HomeTeam.Abbreviation)

	rec = env.do(t, http.MethodGet, "/api/v1/games", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &games)
	require.Len(t, games, 1)
	assert.Equal(t, int64(102), games[0].Game.GameID)

	rec = env.do(t, http.MethodGet, "/api/v1/games?date=01/10/2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetGame(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/games/101", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/games/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/games/abc", nil).Code)
}

func TestTeamRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/teams", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var teams []map[string]interface{}
	decode(t, rec, &teams)
	assert.Len(t, teams, 2)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/teams/77", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/v1/teams/10/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats service.TeamStats
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 2, stats.Points)
	assert.Equal(t, 2, stats.GoalDifferential)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/teams/77/stats", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/v1/teams/8/recent?n=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recent []map[string]interface{}
	decode(t, rec, &recent)
	assert.Len(t, recent, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/teams/8/recent?n=0", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/teams/77/recent", nil).Code)
}

func TestGetStandings(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/standings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var teams []standings.TeamInfo
	decode(t, rec, &teams)
	require.Len(t, teams, 1)
	assert.Equal(t, "Atlantic", teams[0].Division)
}

func TestPredictGame(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/games/102/predict", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var prediction struct {
		GameID            int64 `json:"game_id"`
		PredictedWinnerID int64 `json:"predicted_winner_id"`
		Correct           *bool `json:"correct"`
	}
	decode(t, rec, &prediction)
	assert.Equal(t, int64(102), prediction.GameID)
	assert.Contains(t, []int64{8, 10}, prediction.PredictedWinnerID)
	assert.Nil(t, prediction.Correct)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/v1/games/102/predict", nil).Code)
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/games/102/predict?force=true", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/games/102/predict?force=maybe", nil).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/v1/games/101/predict", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/games/999/predict", nil).Code)

	predictions, err := env.repo.ListPredictionsByDate(context.Background(), "2024-01-10")
	require.NoError(t, err)
	assert.Len(t, predictions, 1)
}

func TestPredictEvaluateReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/api/v1/predictions?date=2024-01-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var batch service.BatchResult
	decode(t, rec, &batch)
	assert.Equal(t, 1, batch.Predicted)

	rec = env.do(t, http.MethodGet, "/api/v1/predictions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]interface{}
	decode(t, rec, &listed)
	require.Len(t, listed, 1)
	predictedWinner := int64(listed[0]["predicted_winner_id"].(float64))

	game, err := env.repo.GetGame(ctx, 102)
	require.NoError(t, err)
	game.State = store.StateFinal
	game.HomeScore = sql.NullInt32{Int32: 1, Valid: true}
	game.AwayScore = sql.NullInt32{Int32: 3, Valid: true}
	game.WinnerID = sql.NullInt64{Int64: 10, Valid: true}
	game.WinType = sql.NullString{String: string(store.WinRegulation), Valid: true}
	require.NoError(t, env.repo.UpsertGame(ctx, game))

	rec = env.do(t, http.MethodPost, "/api/v1/predictions/evaluate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary service.EvaluationSummary
	decode(t, rec, &summary)
	assert.Equal(t, 1, summary.Evaluated)

	rec = env.do(t, http.MethodGet, "/api/v1/predictions/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report service.ConfidenceReport
	decode(t, rec, &report)
	assert.Equal(t, 1, report.Total)
	if predictedWinner == 10 {
		assert.Equal(t, 1, report.Correct)
		assert.Equal(t, 100.0, report.Accuracy)
	} else {
		assert.Equal(t, 0, report.Correct)
		assert.Equal(t, 0.0, report.Accuracy)
	}
}

func TestBackfillRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/backfill", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/backfill", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/backfill", []byte(`{"start_date":"2024-01-10"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/backfill", []byte(`{"start_date":"2024-01-01","end_date":"2024-01-03","dry_run":true}`))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted struct {
		Job backfill.Job `json:"job"`
	}
	decode(t, rec, &accepted)
	assert.NotEmpty(t, accepted.Job.JobID)
	assert.Equal(t, 3, accepted.Job.ProgressTotal)
	assert.Equal(t, backfill.JobStatusQueued, accepted.Job.Status)

	rec = env.do(t, http.MethodGet, "/api/v1/backfill/"+accepted.Job.JobID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/backfill/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	decode(t, rec, &status)
	assert.Len(t, status["history"], 1)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/backfill/nope", nil).Code)
}
