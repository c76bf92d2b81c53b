package ingest

import (
	"context"

	"github.com/fortuna/aurora/internal/store"
	"github.com/sirupsen/logrus"
)

// HistoryResult summarises an EnsureCompleteGameHistory pass
type HistoryResult struct {
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	DaysOK      int      `json:"days_ok"`
	GamesStored int      `json:"games_stored"`
	FailedDates []string `json:"failed_dates,omitempty"`
}

// EnsureCompleteGameHistory ingests every day from today-daysBack through
// today. A failed day is recorded and the loop moves on; cancelling ctx stops
// the pass and returns what was done so far.
func (i *Ingester) EnsureCompleteGameHistory(ctx context.Context, daysBack int) HistoryResult {
	if daysBack < 0 {
		daysBack = 0
	}

	today := i.now().In(i.loc)
	start := today.AddDate(0, 0, -daysBack)
	result := HistoryResult{
		StartDate: start.Format(store.DateLayout),
		EndDate:   today.Format(store.DateLayout),
	}

	i.logger.WithFields(logrus.Fields{
		"start_date": result.StartDate,
		"end_date":   result.EndDate,
	}).Info("Ensuring complete game history")

	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			i.logger.WithError(ctx.Err()).Warn("Game history pass cancelled")
			break
		}

		date := day.Format(store.DateLayout)
		n, err := i.IngestDay(ctx, date)
		if err != nil {
			result.FailedDates = append(result.FailedDates, date)
			continue
		}
		result.DaysOK++
		result.GamesStored += n
	}

	i.logger.WithFields(logrus.Fields{
		"days_ok":      result.DaysOK,
		"days_failed":  len(result.FailedDates),
		"games_stored": result.GamesStored,
	}).Info("Game history pass complete")

	return result
}
