package backfill

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/aurora/internal/store"
	"github.com/sirupsen/logrus"
)

// DayIngester ingests the schedule of one calendar date
type DayIngester interface {
	IngestDay(ctx context.Context, date string) (int, error)
}

// Runner executes backfill specs one date at a time.
type Runner struct {
	ingester DayIngester
	logger   *logrus.Logger
}

// NewRunner constructs a runner around an ingester
func NewRunner(ingester DayIngester, logger *logrus.Logger) *Runner {
	return &Runner{ingester: ingester, logger: logger}
}

// Run ingests every date of the spec, reporting progress via the Reporter if
// provided. A failed date is recorded and the run continues; only context
// cancellation stops it early.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) (*Summary, error) {
	if reporter == nil {
		reporter = nopReporter{}
	}
	reporter.OnJobStart(spec)

	switch spec.Type {
	case JobTypeSeason, JobTypeDateRange:
	default:
		return nil, fmt.Errorf("unsupported job type %q", spec.Type)
	}

	dates := enumerateDates(spec.Start, spec.End)
	summary := &Summary{}

	for idx, date := range dates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		reporter.OnDateStart(date, idx, len(dates))
		summary.Days++

		if spec.DryRun {
			reporter.OnDateDone(date, 0)
			continue
		}

		day := date.Format(store.DateLayout)
		n, err := r.ingester.IngestDay(ctx, day)
		if err != nil {
			summary.DaysFailed++
			summary.FailedDates = append(summary.FailedDates, day)
			r.logger.WithError(err).WithField("date", day).Warn("Backfill day failed")
			reporter.OnDateFailed(date, err)
			continue
		}

		summary.GamesStored += n
		reporter.OnDateDone(date, n)
	}

	r.logger.WithFields(logrus.Fields{
		"days":         summary.Days,
		"days_failed":  summary.DaysFailed,
		"games_stored": summary.GamesStored,
		"dry_run":      spec.DryRun,
	}).Info("Backfill complete")

	reporter.OnJobComplete(summary)
	return summary, nil
}

type nopReporter struct{}

func (nopReporter) OnJobStart(JobSpec) {}
func (nopReporter) OnDateStart(time.Time, int, int) {}
func (nopReporter) OnDateDone(time.Time, int) {}
func (nopReporter) OnDateFailed(time.Time, error) {}
func (nopReporter) OnJobComplete(*Summary) {}

func enumerateDates(start, end time.Time) []time.Time {
	if end.Before(start) {
		start, end = end, start
	}

	var dates []time.Time
	current := truncateDate(start)
	final := truncateDate(end)

	for !current.After(final) {
		dates = append(dates, current)
		current = current.AddDate(0, 0, 1)
	}

	return dates
}

// SeasonWindow returns the regular-season-plus-playoffs window of a season
// written "2023-24", "20232024" or "2023".
func SeasonWindow(seasonID string) (time.Time, time.Time, error) {
	seasonID = strings.TrimSpace(seasonID)
	var yearText string
	switch {
	case strings.Contains(seasonID, "-"):
		yearText = strings.SplitN(seasonID, "-", 2)[0]
	case len(seasonID) == 8:
		yearText = seasonID[:4]
	default:
		yearText = seasonID
	}

	startYear, err := strconv.Atoi(yearText)
	if err != nil || startYear < 1917 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid season %q", seasonID)
	}

	start := time.Date(startYear, time.October, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(startYear+1, time.June, 30, 0, 0, 0, 0, time.UTC)
	return start, end, nil
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
