package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortuna/aurora/internal/ingest"
	"github.com/fortuna/aurora/internal/service"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIngester struct {
	today    string
	failures int
	games    int
	calls    int
	history  []int
	steps    *[]string
}

func (s *stubIngester) Today() string { return s.today }

func (s *stubIngester) IngestDay(ctx context.Context, date string) (int, error) {
	s.calls++
	*s.steps = append(*s.steps, "ingest:"+date)
	if s.calls <= s.failures {
		return 0, errors.New("feed down")
	}
	return s.games, nil
}

func (s *stubIngester) EnsureCompleteGameHistory(ctx context.Context, daysBack int) ingest.HistoryResult {
	s.history = append(s.history, daysBack)
	*s.steps = append(*s.steps, "history")
	return ingest.HistoryResult{DaysOK: daysBack + 1, GamesStored: 12}
}

type stubStandings struct {
	n     int
	err   error
	steps *[]string
}

func (s *stubStandings) Refresh(ctx context.Context) (int, error) {
	*s.steps = append(*s.steps, "standings")
	return s.n, s.err
}

type stubPredictor struct {
	steps *[]string
	dates []string
}

func (p *stubPredictor) PredictAllScheduled(ctx context.Context, date string, force bool) (*service.BatchResult, error) {
	*p.steps = append(*p.steps, "predict")
	p.dates = append(p.dates, date)
	return &service.BatchResult{Date: date, Predicted: 2}, nil
}

func (p *stubPredictor) EvaluatePending(ctx context.Context) (*service.EvaluationSummary, error) {
	*p.steps = append(*p.steps, "evaluate")
	return &service.EvaluationSummary{Evaluated: 3, Correct: 2, Wrong: 1}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HistoryDays = 7
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestCollectRunsStepsInOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var steps []string
	ing := &stubIngester{today: "2024-01-15", games: 4, steps: &steps}
	st := &stubStandings{n: 32, steps: &steps}

	a := New(ing, st, nil, testConfig(), logger)
	summary, err := a.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"standings", "ingest:2024-01-15", "history"}, steps)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "2024-01-15", summary.Date)
	assert.Equal(t, 32, summary.TeamsEnriched)
	assert.Equal(t, 4, summary.TodayGames)
	assert.Equal(t, []int{7}, ing.history)
	assert.Equal(t, 12, summary.History.GamesStored)
	assert.Empty(t, summary.StandingsError)
	assert.Empty(t, summary.TodayError)
}

func TestCollectContinuesAfterStandingsFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var steps []string
	ing := &stubIngester{today: "2024-01-15", games: 1, steps: &steps}
	st := &stubStandings{err: errors.New("standings timeout"), steps: &steps}

	summary, err := New(ing, st, nil, testConfig(), logger).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "standings timeout", summary.StandingsError)
	assert.Equal(t, 1, summary.TodayGames)
	assert.Len(t, steps, 3)
}

func TestCollectRetriesTodaysIngest(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var steps []string
	ing := &stubIngester{today: "2024-01-15", games: 5, failures: 2, steps: &steps}

	summary, err := New(ing, nil, nil, testConfig(), logger).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, ing.calls)
	assert.Equal(t, 5, summary.TodayGames)
	assert.Empty(t, summary.TodayError)
}

func TestCollectRecordsExhaustedRetries(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var steps []string
	ing := &stubIngester{today: "2024-01-15", failures: 10, steps: &steps}

	summary, err := New(ing, nil, nil, testConfig(), logger).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, ing.calls)
	assert.Equal(t, "feed down", summary.TodayError)
	assert.Equal(t, []int{7}, ing.history)
}

func TestCollectStopsOnCancelledContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var steps []string
	ing := &stubIngester{today: "2024-01-15", steps: &steps}
	st := &stubStandings{steps: &steps}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ing, st, nil, testConfig(), logger).Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"standings"}, steps)
}

func TestRunPredictsAndEvaluates(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var steps []string
	ing := &stubIngester{today: "2024-01-15", games: 2, steps: &steps}
	st := &stubStandings{n: 32, steps: &steps}
	pred := &stubPredictor{steps: &steps}

	result, err := New(ing, st, pred, testConfig(), logger).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"standings", "ingest:2024-01-15", "history", "predict", "evaluate"}, steps)
	assert.Equal(t, []string{"2024-01-15"}, pred.dates)
	assert.Equal(t, 2, result.Predictions.Predicted)
	assert.Equal(t, 3, result.Evaluation.Evaluated)
	assert.Equal(t, 32, result.TeamsEnriched)
}

func TestRunWithoutPredictorFails(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var steps []string
	ing := &stubIngester{today: "2024-01-15", steps: &steps}

	_, err := New(ing, nil, nil, testConfig(), logger).Run(context.Background())
	assert.Error(t, err)
}

func TestRunDailyRejectsBadHour(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var steps []string
	cfg := testConfig()
	cfg.DailyRunHour = 25

	err := New(&stubIngester{steps: &steps}, nil, nil, cfg, logger).RunDaily(context.Background())
	assert.Error(t, err)
}

func TestRunDailyStopsWithContext(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var steps []string
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- New(&stubIngester{steps: &steps}, nil, nil, testConfig(), logger).RunDaily(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Empty(t, steps)

	var messages []string
	for _, entry := range hook.AllEntries() {
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "Daily agent scheduler started")
	assert.Contains(t, messages, "Daily agent scheduler stopped")
}
