// Package app assembles the store, feed client, pipeline services and
// optional Redis side channels from configuration. Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/aurora/internal/agent"
	"github.com/fortuna/aurora/internal/backfill"
	"github.com/fortuna/aurora/internal/cache"
	"github.com/fortuna/aurora/internal/config"
	"github.com/fortuna/aurora/internal/ingest"
	"github.com/fortuna/aurora/internal/nhl"
	"github.com/fortuna/aurora/internal/publisher"
	"github.com/fortuna/aurora/internal/service"
	"github.com/fortuna/aurora/internal/standings"
	"github.com/fortuna/aurora/internal/store"
	"github.com/fortuna/aurora/internal/store/memstore"
	"github.com/fortuna/aurora/internal/store/repository"
	"github.com/sirupsen/logrus"
)

const (
	redisAttempts   = 5
	redisRetryDelay = 2 * time.Second
)

// Options alter how the App is assembled
type Options struct {
	// DryRun keeps everything in memory: no Postgres, no Redis.
	DryRun bool
	// Migrate applies the embedded schema migrations on connect.
	Migrate bool
}

// App holds the wired components
type App struct {
	Config *config.Config
	Logger *logrus.Logger

	Repo      store.Repository
	Memory    *memstore.Store
	DB        *store.Database
	Redis     *cache.RedisCache
	Publisher *publisher.RedisStreamPublisher

	Feed        *nhl.Client
	Ingester    *ingest.Ingester
	Enricher    *standings.Enricher
	Stats       *service.StatsService
	Games       *service.GameService
	Predictions *service.PredictionService
	Runner      *backfill.Runner
	Agent       *agent.Agent

	closers []func() error
}

// New connects to the configured backends and wires the services
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if opts.DryRun {
		a.Memory = memstore.New()
		a.Repo = a.Memory
		logger.Warn("Dry run: using in-memory store, nothing is persisted")
	} else {
		db, err := store.NewDatabase(cfg.Database.DSN, cfg.Database.Pool(), logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		logger.Info("✓ Connected to database")

		if opts.Migrate {
			if err := db.RunMigrations(ctx); err != nil {
				a.Close()
				return nil, fmt.Errorf("running migrations: %w", err)
			}
		}
		a.Repo = repository.NewPostgres(db)

		if cfg.Redis.Enabled {
			a.connectRedis(ctx)
		}
	}

	a.Feed = nhl.NewClient(cfg.Feed.Client(), logger)

	a.Ingester = ingest.NewIngester(a.Feed, a.Repo, logger)
	a.Enricher = standings.NewEnricher(a.Feed, a.Repo, logger)
	a.Stats = service.NewStatsService(a.Repo, logger)
	a.Games = service.NewGameService(a.Repo)
	a.Predictions = service.NewPredictionService(a.Repo, a.Stats, logger)
	a.Runner = backfill.NewRunner(a.Ingester, logger)

	if a.Publisher != nil {
		a.Ingester.WithPublisher(a.Publisher)
		a.Predictions.WithListener(a.Publisher)
	}
	if a.Redis != nil {
		a.Enricher.WithMirror(a.Redis)
		if n, err := a.Redis.Warm(ctx, a.Enricher.Cache()); err != nil {
			logger.WithError(err).Warn("Warming team cache from Redis failed")
		} else if n > 0 {
			logger.WithField("teams", n).Info("✓ Team cache warmed from Redis")
		}
	}

	a.Agent = agent.New(a.Ingester, a.Enricher, a.Predictions, agent.Config{
		HistoryDays:  cfg.Agent.HistoryDays,
		MaxRetries:   cfg.Agent.MaxRetries,
		RetryDelay:   cfg.Agent.RetryDelay,
		DailyRunHour: cfg.Agent.DailyHour,
	}, logger)

	return a, nil
}

// connectRedis sets up the standings mirror and event publisher. Redis is
// optional: after the last failed attempt the app runs without it.
func (a *App) connectRedis(ctx context.Context) {
	var err error
	for attempt := 1; attempt <= redisAttempts; attempt++ {
		a.Redis, err = cache.NewRedisCache(a.Config.Redis.URL)
		if err == nil {
			break
		}

		a.Logger.WithError(err).WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": redisAttempts,
		}).Warn("Redis connection attempt failed")

		if attempt < redisAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(redisRetryDelay):
			}
		}
	}
	if err != nil {
		a.Logger.Warn("Continuing without Redis")
		return
	}

	a.Publisher = publisher.NewRedisStreamPublisher(a.Redis.Client(), a.Logger)
	a.closers = append(a.closers, a.Redis.Close)
	a.Logger.Info("✓ Connected to Redis")
}

// Close releases connections in reverse order of opening
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.WithError(err).Warn("Close failed")
		}
	}
	a.closers = nil
}
