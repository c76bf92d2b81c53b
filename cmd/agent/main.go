package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortuna/aurora/internal/app"
	"github.com/fortuna/aurora/internal/backfill"
	"github.com/fortuna/aurora/internal/config"
	"github.com/fortuna/aurora/internal/service"
	"github.com/fortuna/aurora/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	appName    = "aurora-agent"
	appVersion = "1.0.0"
)

const usage = `usage: agent [--config path] [--dry-run] <command> [flags]

commands:
  collect     refresh standings, ingest today, fill recent history
  run         collect, then predict today's games and evaluate finished ones
  backfill    ingest a season (--season 2023-24) or range (--start, --end)
  predict     predict scheduled games (--date, or --game ID [--force])
  evaluate    score predictions whose games are final
  report      accuracy by confidence band
  games       list games for a date (--date, default today)
`

var errUsage = errors.New("invalid usage")

func main() {
	global := flag.NewFlagSet(appName, flag.ExitOnError)
	configPath := global.String("config", "", "Path to YAML config (default config/aurora.yaml)")
	dryRun := global.Bool("dry-run", false, "Use an in-memory store instead of Postgres")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger, err := config.NewLogger(cfg.Agent.LogLevel, cfg.Agent.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid logging configuration")
	}
	logger.Debugf("=== %s v%s ===", appName, appVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{DryRun: *dryRun, Migrate: true})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise")
	}

	err = dispatch(ctx, a, args[0], args[1:], os.Stdout)
	if a.Memory != nil {
		counts := a.Memory.Counts()
		fmt.Fprintf(os.Stdout, "\n(dry run: %d teams, %d games, %d predictions held in memory)\n",
			counts.Teams, counts.Games, counts.Predictions)
	}
	a.Close()

	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.WithError(err).Fatal(args[0] + " failed")
	}
}

func dispatch(ctx context.Context, a *app.App, command string, args []string, out io.Writer) error {
	switch command {
	case "collect":
		summary, err := a.Agent.Collect(ctx)
		if summary != nil {
			printCollect(out, summary.Date, summary.TeamsEnriched, summary.TodayGames, summary.History.GamesStored, summary.History.FailedDates)
		}
		return err

	case "run":
		result, err := a.Agent.Run(ctx)
		if result != nil && result.CollectSummary != nil {
			printCollect(out, result.Date, result.TeamsEnriched, result.TodayGames, result.History.GamesStored, result.History.FailedDates)
		}
		if result != nil && result.Predictions != nil {
			printBatch(out, result.Predictions)
		}
		if result != nil && result.Evaluation != nil {
			printEvaluation(out, result.Evaluation)
		}
		return err

	case "backfill":
		return runBackfill(ctx, a, args, out)

	case "predict":
		return runPredict(ctx, a, args, out)

	case "evaluate":
		summary, err := a.Predictions.EvaluatePending(ctx)
		if err != nil {
			return err
		}
		printEvaluation(out, summary)
		return nil

	case "report":
		report, err := a.Predictions.ConfidenceBreakdown(ctx)
		if err != nil {
			return err
		}
		printReport(out, report)
		return nil

	case "games":
		fs := flag.NewFlagSet("games", flag.ContinueOnError)
		date := fs.String("date", "", "Date (YYYY-MM-DD), default today")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		day := *date
		if day == "" {
			day = a.Ingester.Today()
		}
		if _, err := store.ParseDate(day); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		games, err := a.Games.GamesByDate(ctx, day)
		if err != nil {
			return err
		}
		printGames(out, day, games)
		return nil
	}
	return errUsage
}

func runBackfill(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	season := fs.String("season", "", "Season to backfill (e.g., 2023-24)")
	start := fs.String("start", "", "Start date (YYYY-MM-DD)")
	end := fs.String("end", "", "End date (YYYY-MM-DD)")
	plan := fs.Bool("plan", false, "List the dates without fetching")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	req := backfill.Request{SeasonID: *season, DryRun: *plan}
	if *start != "" {
		t, err := store.ParseDate(*start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		req.StartDate = &t
	}
	if *end != "" {
		t, err := store.ParseDate(*end)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		req.EndDate = &t
	}

	spec, err := req.Spec()
	if err != nil {
		return err
	}

	summary, err := a.Runner.Run(ctx, spec, &consoleReporter{out: out, logger: a.Logger})
	if summary != nil {
		fmt.Fprintf(out, "Backfill: %d days, %d failed, %d games stored\n",
			summary.Days, summary.DaysFailed, summary.GamesStored)
	}
	return err
}

func runPredict(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	date := fs.String("date", "", "Date (YYYY-MM-DD), default today")
	gameID := fs.Int64("game", 0, "Predict a single game")
	force := fs.Bool("force", false, "Replace existing predictions")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *gameID > 0 {
		p, err := a.Predictions.Predict(ctx, *gameID, *force)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Game %d: pick team %d (confidence %.3f, %s)\n",
			p.GameID, p.PredictedWinnerID, p.Confidence, service.ConfidenceLevel(p.Confidence))
		return nil
	}

	day := *date
	if day == "" {
		day = a.Ingester.Today()
	}
	if _, err := store.ParseDate(day); err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}
	result, err := a.Predictions.PredictAllScheduled(ctx, day, *force)
	if err != nil {
		return err
	}
	printBatch(out, result)
	return nil
}

type consoleReporter struct {
	out    io.Writer
	logger *logrus.Logger
	start  time.Time
}

func (c *consoleReporter) OnJobStart(spec backfill.JobSpec) {
	c.start = time.Now()
	c.logger.WithFields(logrus.Fields{
		"type":    spec.Type,
		"start":   spec.Start.Format(store.DateLayout),
		"end":     spec.End.Format(store.DateLayout),
		"dry_run": spec.DryRun,
	}).Info("Starting backfill")
}

func (c *consoleReporter) OnDateStart(date time.Time, index int, total int) {
	fmt.Fprintf(c.out, "[%d/%d] %s ", index+1, total, date.Format(store.DateLayout))
}

func (c *consoleReporter) OnDateDone(date time.Time, games int) {
	fmt.Fprintf(c.out, "%d games\n", games)
}

func (c *consoleReporter) OnDateFailed(date time.Time, err error) {
	fmt.Fprintf(c.out, "FAILED: %v\n", err)
}

func (c *consoleReporter) OnJobComplete(summary *backfill.Summary) {
	c.logger.WithField("duration", time.Since(c.start).Round(time.Millisecond)).Info("Backfill finished")
}
