package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/aurora/internal/ingest"
	"github.com/fortuna/aurora/internal/service"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ScheduleIngester is the slice of ingest.Ingester the agent drives
type ScheduleIngester interface {
	Today() string
	IngestDay(ctx context.Context, date string) (int, error)
	EnsureCompleteGameHistory(ctx context.Context, daysBack int) ingest.HistoryResult
}

// StandingsRefresher refreshes team conference/division data
type StandingsRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Predictor makes and scores predictions
type Predictor interface {
	PredictAllScheduled(ctx context.Context, date string, force bool) (*service.BatchResult, error)
	EvaluatePending(ctx context.Context) (*service.EvaluationSummary, error)
}

// Config holds agent configuration
type Config struct {
	HistoryDays  int           // Default: 30
	MaxRetries   int           // Default: 3
	RetryDelay   time.Duration // Default: 5s
	DailyRunHour int           // Default: 10 (US Eastern)
}

// DefaultConfig returns default agent configuration
func DefaultConfig() Config {
	return Config{
		HistoryDays:  30,
		MaxRetries:   3,
		RetryDelay:   5 * time.Second,
		DailyRunHour: 10,
	}
}

// Agent runs the collection pipeline end to end
type Agent struct {
	ingester  ScheduleIngester
	standings StandingsRefresher
	predictor Predictor
	config    Config
	logger    *logrus.Logger
}

// New creates an agent. predictor may be nil when only Collect is used.
func New(ingester ScheduleIngester, standings StandingsRefresher, predictor Predictor, config Config, logger *logrus.Logger) *Agent {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	return &Agent{
		ingester:  ingester,
		standings: standings,
		predictor: predictor,
		config:    config,
		logger:    logger,
	}
}

// CollectSummary reports one Collect pass
type CollectSummary struct {
	RunID          string               `json:"run_id"`
	Date           string               `json:"date"`
	TeamsEnriched  int                  `json:"teams_enriched"`
	StandingsError string               `json:"standings_error,omitempty"`
	TodayGames     int                  `json:"today_games"`
	TodayError     string               `json:"today_error,omitempty"`
	History        ingest.HistoryResult `json:"history"`
	Duration       time.Duration        `json:"duration"`
}

// RunSummary reports one full Run
type RunSummary struct {
	*CollectSummary
	Predictions *service.BatchResult       `json:"predictions,omitempty"`
	Evaluation  *service.EvaluationSummary `json:"evaluation,omitempty"`
}

// Collect refreshes standings, ingests today's schedule and fills in the
// recent game history. Step failures are recorded in the summary; only a
// cancelled context aborts the pass.
func (a *Agent) Collect(ctx context.Context) (*CollectSummary, error) {
	start := time.Now()
	summary := &CollectSummary{
		RunID: uuid.NewString(),
		Date:  a.ingester.Today(),
	}
	log := a.logger.WithField("run_id", summary.RunID)
	log.WithField("date", summary.Date).Info("═══ Data collection starting ═══")

	if a.standings != nil {
		n, err := a.standings.Refresh(ctx)
		if err != nil {
			summary.StandingsError = err.Error()
			log.WithError(err).Warn("Standings refresh failed")
		}
		summary.TeamsEnriched = n
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	n, err := a.ingestWithRetry(ctx, summary.Date, log)
	if err != nil {
		summary.TodayError = err.Error()
	}
	summary.TodayGames = n
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	summary.History = a.ingester.EnsureCompleteGameHistory(ctx, a.config.HistoryDays)
	summary.Duration = time.Since(start)

	log.WithFields(logrus.Fields{
		"teams_enriched": summary.TeamsEnriched,
		"today_games":    summary.TodayGames,
		"history_games":  summary.History.GamesStored,
		"history_failed": len(summary.History.FailedDates),
		"duration":       summary.Duration.Round(time.Millisecond),
	}).Info("═══ Data collection complete ═══")

	return summary, ctx.Err()
}

// Run collects data, predicts today's games and evaluates finished ones.
func (a *Agent) Run(ctx context.Context) (*RunSummary, error) {
	collected, err := a.Collect(ctx)
	result := &RunSummary{CollectSummary: collected}
	if err != nil {
		return result, err
	}
	if a.predictor == nil {
		return result, fmt.Errorf("agent has no predictor")
	}

	result.Predictions, err = a.predictor.PredictAllScheduled(ctx, collected.Date, false)
	if err != nil {
		return result, fmt.Errorf("predicting %s: %w", collected.Date, err)
	}

	result.Evaluation, err = a.predictor.EvaluatePending(ctx)
	if err != nil {
		return result, fmt.Errorf("evaluating predictions: %w", err)
	}
	return result, nil
}

// RunDaily runs the full pipeline every day at DailyRunHour, league
// (US Eastern) time, until ctx is cancelled. Overlapping runs are skipped.
func (a *Agent) RunDaily(ctx context.Context) error {
	eastern, err := time.LoadLocation("America/New_York")
	if err != nil {
		a.logger.WithError(err).Warn("Failed to load America/New_York timezone, scheduling in UTC")
		eastern = time.UTC
	}

	c := cron.New(
		cron.WithLocation(eastern),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err = c.AddFunc(fmt.Sprintf("0 %d * * *", a.config.DailyRunHour), func() {
		if _, err := a.Run(ctx); err != nil {
			a.logger.WithError(err).Error("Scheduled agent run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling daily run: %w", err)
	}

	c.Start()
	a.logger.WithFields(logrus.Fields{
		"hour":     a.config.DailyRunHour,
		"next_run": c.Entries()[0].Next.Format(time.RFC3339),
	}).Info("Daily agent scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	a.logger.Info("Daily agent scheduler stopped")
	return nil
}

func (a *Agent) ingestWithRetry(ctx context.Context, date string, log logrus.FieldLogger) (int, error) {
	var n int
	var err error
	for attempt := 1; attempt <= a.config.MaxRetries; attempt++ {
		n, err = a.ingester.IngestDay(ctx, date)
		if err == nil {
			return n, nil
		}

		log.WithError(err).WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": a.config.MaxRetries,
		}).Warn("Ingesting today's schedule failed")

		if attempt < a.config.MaxRetries {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(a.config.RetryDelay):
			}
		}
	}
	return 0, err
}
