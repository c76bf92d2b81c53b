// Package standings enriches stored teams with conference and division data
// from the league standings feed and keeps an in-process team cache.
package standings

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/aurora/internal/nhl"
	"github.com/fortuna/aurora/internal/store"
	"github.com/sirupsen/logrus"
)

// StandingsFetcher fetches the raw standings document
type StandingsFetcher interface {
	FetchStandings(ctx context.Context) (map[string]interface{}, error)
}

// Mirror receives the cache contents after every enrichment
type Mirror interface {
	StoreTeams(ctx context.Context, teams []TeamInfo) error
}

// Enricher applies standings documents to the store and the TeamCache
type Enricher struct {
	feed   StandingsFetcher
	repo   store.Repository
	cache  *TeamCache
	mirror Mirror
	logger *logrus.Logger
}

// NewEnricher creates an enricher with an empty cache
func NewEnricher(feed StandingsFetcher, repo store.Repository, logger *logrus.Logger) *Enricher {
	return &Enricher{
		feed:   feed,
		repo:   repo,
		cache:  NewTeamCache(),
		logger: logger,
	}
}

// WithMirror attaches a mirror that is refreshed after each enrichment
func (e *Enricher) WithMirror(m Mirror) *Enricher {
	e.mirror = m
	return e
}

// Cache returns the enricher's team cache
func (e *Enricher) Cache() *TeamCache {
	return e.cache
}

// Refresh fetches the standings feed and applies it
func (e *Enricher) Refresh(ctx context.Context) (int, error) {
	doc, err := e.feed.FetchStandings(ctx)
	if err != nil {
		e.logger.WithError(err).Error("Standings fetch failed")
		return 0, fmt.Errorf("fetch standings: %w", err)
	}
	return e.Enrich(ctx, doc)
}

// Enrich updates conference and division of every stored team listed in doc
// and merges each entry into the cache. Teams absent from the store are only
// cached. Returns the number of team rows updated.
func (e *Enricher) Enrich(ctx context.Context, doc map[string]interface{}) (int, error) {
	entries, err := nhl.ParseStandings(doc, e.logger)
	if err != nil {
		e.logger.WithError(err).Error("Standings document has an unexpected shape")
		return 0, fmt.Errorf("parse standings: %w", err)
	}

	var updated int64
	var infos []TeamInfo
	err = e.repo.InTx(ctx, func(tx store.Repository) error {
		for _, entry := range entries {
			n, err := tx.UpdateTeamStandings(ctx, entry.Abbreviation, entry.Conference, entry.Division)
			if err != nil {
				return err
			}
			if n == 0 {
				e.logger.WithField("abbrev", entry.Abbreviation).Debug("Standings entry has no stored team")
			}
			updated += n

			info := TeamInfo{
				Name:         entry.Name,
				Abbreviation: entry.Abbreviation,
				Conference:   entry.Conference,
				Division:     entry.Division,
				Record: SeasonRecord{
					Wins:     entry.Wins,
					Losses:   entry.Losses,
					OTLosses: entry.OTLosses,
					Points:   entry.Points,
				},
			}
			team, err := tx.GetTeamByAbbreviation(ctx, entry.Abbreviation)
			switch {
			case err == nil:
				info.ID = team.TeamID
				if info.Name == "" {
					info.Name = team.Name
				}
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("apply standings: %w", err)
	}

	for _, info := range infos {
		e.cache.Merge(info)
	}

	if e.mirror != nil {
		if err := e.mirror.StoreTeams(ctx, e.cache.All()); err != nil {
			e.logger.WithError(err).Warn("Failed to mirror team cache")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"entries": len(entries),
		"updated": updated,
	}).Info("Applied standings")
	return int(updated), nil
}
