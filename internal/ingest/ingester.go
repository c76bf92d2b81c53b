// Package ingest stores the NHL schedule feed in the relational store.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/aurora/internal/nhl"
	"github.com/fortuna/aurora/internal/store"
	"github.com/sirupsen/logrus"
)

// ScheduleFetcher fetches the raw schedule document for a date
type ScheduleFetcher interface {
	FetchSchedule(ctx context.Context, date string) (map[string]interface{}, error)
}

// FinalGamePublisher is told about games that became final during ingestion
type FinalGamePublisher interface {
	PublishGameFinal(ctx context.Context, game *store.Game) error
}

// Ingester handles the ingestion of the schedule feed into the store.
type Ingester struct {
	feed      ScheduleFetcher
	repo      store.Repository
	publisher FinalGamePublisher
	logger    *logrus.Logger

	loc *time.Location
	now func() time.Time
}

// NewIngester creates an ingester. Calendar days follow US Eastern time,
// which is how the league dates its schedule.
func NewIngester(feed ScheduleFetcher, repo store.Repository, logger *logrus.Logger) *Ingester {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		logger.WithError(err).Warn("Failed to load America/New_York timezone, falling back to UTC")
		loc = time.UTC
	}

	return &Ingester{
		feed:   feed,
		repo:   repo,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

// WithPublisher attaches a publisher for games that transition to final
func (i *Ingester) WithPublisher(p FinalGamePublisher) *Ingester {
	i.publisher = p
	return i
}

// Today returns the current league calendar date (YYYY-MM-DD)
func (i *Ingester) Today() string {
	return i.now().In(i.loc).Format(store.DateLayout)
}

// IngestDay fetches the schedule for date and stores its games.
// A fetch or document-shape failure returns an error and stores nothing.
func (i *Ingester) IngestDay(ctx context.Context, date string) (int, error) {
	log := i.logger.WithField("date", date)
	log.Info("Fetching schedule")

	doc, err := i.feed.FetchSchedule(ctx, date)
	if err != nil {
		log.WithError(err).Error("Schedule fetch failed")
		return 0, fmt.Errorf("fetch schedule for %s: %w", date, err)
	}

	games, err := nhl.ParseSchedule(doc, date, log)
	if err != nil {
		log.WithError(err).Error("Schedule document has an unexpected shape")
		return 0, fmt.Errorf("parse schedule for %s: %w", date, err)
	}

	return i.StoreGames(ctx, date, games)
}

// StoreGames upserts the games of one day in a single transaction. Each game
// runs under its own savepoint: a failing game is logged and rolled back
// while the rest of the day is kept. Returns the number of games stored.
func (i *Ingester) StoreGames(ctx context.Context, date string, games []nhl.NormalizedGame) (int, error) {
	stored := 0
	var finals []*store.Game

	err := i.repo.InTx(ctx, func(tx store.Repository) error {
		for _, parsed := range games {
			log := i.logger.WithFields(logrus.Fields{"date": date, "game_id": parsed.GameID})

			var outcome storeOutcome
			err := tx.Savepoint(ctx, func(sp store.Repository) error {
				var err error
				outcome, err = i.storeGame(ctx, sp, parsed, log)
				return err
			})
			if err != nil {
				log.WithError(err).Warn("Skipping game")
				continue
			}
			if outcome.game == nil {
				continue
			}

			stored++
			if outcome.newlyFinal {
				finals = append(finals, outcome.game)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store games for %s: %w", date, err)
	}

	i.publishFinals(ctx, finals)

	i.logger.WithFields(logrus.Fields{"date": date, "stored": stored, "received": len(games)}).Info("Processed games")
	return stored, nil
}

type storeOutcome struct {
	// game is nil when the feed update was ignored
	game       *store.Game
	newlyFinal bool
}

func (i *Ingester) storeGame(ctx context.Context, repo store.Repository, parsed nhl.NormalizedGame, log logrus.FieldLogger) (storeOutcome, error) {
	if parsed.Home.ID == parsed.Away.ID {
		return storeOutcome{}, fmt.Errorf("home and away team are both %d", parsed.Home.ID)
	}

	gameDate, err := store.ParseDate(parsed.Date)
	if err != nil {
		return storeOutcome{}, fmt.Errorf("parse game date: %w", err)
	}

	for _, meta := range []nhl.TeamMeta{parsed.Home, parsed.Away} {
		inserted, err := repo.InsertTeamIfAbsent(ctx, &store.Team{
			TeamID:       meta.ID,
			Name:         meta.Name,
			Abbreviation: meta.Abbreviation,
		})
		if err != nil {
			return storeOutcome{}, err
		}
		if inserted {
			log.WithFields(logrus.Fields{"team": meta.ID, "abbrev": meta.Abbreviation}).Info("Added team")
		}
	}

	existing, err := repo.GetGame(ctx, parsed.GameID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return storeOutcome{}, err
	}
	if existing != nil && existing.State.Regresses(parsed.State) {
		log.WithFields(logrus.Fields{
			"stored_state": existing.State,
			"feed_state":   parsed.State,
		}).Warn("Feed reports an earlier state than stored, keeping stored row")
		return storeOutcome{}, nil
	}

	game := &store.Game{
		GameID:     parsed.GameID,
		GameDate:   gameDate,
		HomeTeamID: parsed.Home.ID,
		AwayTeamID: parsed.Away.ID,
		HomeScore:  parsed.HomeScore,
		AwayScore:  parsed.AwayScore,
		State:      parsed.State,
	}

	if game.State == store.StateFinal {
		game.WinnerID = decideWinner(game)
		if !game.WinnerID.Valid {
			log.WithFields(logrus.Fields{
				"home_score": parsed.HomeScore,
				"away_score": parsed.AwayScore,
			}).Warn("Final game without a decisive score, leaving winner empty")
		} else if parsed.WinType != "" {
			game.WinType = sql.NullString{String: string(parsed.WinType), Valid: true}
		}
	}

	if err := repo.UpsertGame(ctx, game); err != nil {
		return storeOutcome{}, err
	}

	newlyFinal := game.State == store.StateFinal && game.WinnerID.Valid &&
		(existing == nil || existing.State != store.StateFinal)
	return storeOutcome{game: game, newlyFinal: newlyFinal}, nil
}

// decideWinner picks the side with strictly more goals when both scores are known
func decideWinner(game *store.Game) sql.NullInt64 {
	if !game.HomeScore.Valid || !game.AwayScore.Valid {
		return sql.NullInt64{}
	}
	switch {
	case game.HomeScore.Int32 > game.AwayScore.Int32:
		return sql.NullInt64{Int64: game.HomeTeamID, Valid: true}
	case game.AwayScore.Int32 > game.HomeScore.Int32:
		return sql.NullInt64{Int64: game.AwayTeamID, Valid: true}
	default:
		return sql.NullInt64{}
	}
}

func (i *Ingester) publishFinals(ctx context.Context, finals []*store.Game) {
	if i.publisher == nil {
		return
	}
	for _, game := range finals {
		if err := i.publisher.PublishGameFinal(ctx, game); err != nil {
			i.logger.WithError(err).WithField("game_id", game.GameID).Warn("Failed to publish final game")
		}
	}
}
