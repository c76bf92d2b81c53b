// Package memstore is an in-memory store.Repository. It backs dry runs of the
// agent (nothing is written to PostgreSQL) and the service tests.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fortuna/aurora/internal/store"
)

// Store keeps teams, games and predictions in maps guarded by one mutex.
// Transactions work on a copy of the data that replaces the original on commit.
type Store struct {
	mu   *sync.RWMutex
	data *dataset
	inTx bool
}

type dataset struct {
	teams            map[int64]store.Team
	games            map[int64]store.Game
	predictions      map[int64]store.Prediction
	nextPredictionID int64
}

// Counts summarises how many rows each table holds
type Counts struct {
	Teams       int
	Games       int
	Predictions int
}

var _ store.Repository = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		mu: &sync.RWMutex{},
		data: &dataset{
			teams:       make(map[int64]store.Team),
			games:       make(map[int64]store.Game),
			predictions: make(map[int64]store.Prediction),
		},
	}
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		teams:            make(map[int64]store.Team, len(d.teams)),
		games:            make(map[int64]store.Game, len(d.games)),
		predictions:      make(map[int64]store.Prediction, len(d.predictions)),
		nextPredictionID: d.nextPredictionID,
	}
	for k, v := range d.teams {
		c.teams[k] = v
	}
	for k, v := range d.games {
		c.games[k] = v
	}
	for k, v := range d.predictions {
		c.predictions[k] = v
	}
	return c
}

func (s *Store) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Counts returns the current row counts
func (s *Store) Counts() Counts {
	defer s.rlock()()
	return Counts{
		Teams:       len(s.data.teams),
		Games:       len(s.data.games),
		Predictions: len(s.data.predictions),
	}
}

// InTx runs fn against a copy of the data and keeps the copy only if fn succeeds
func (s *Store) InTx(ctx context.Context, fn func(repo store.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(&Store{mu: s.mu, data: working, inTx: true}); err != nil {
		return err
	}
	*s.data = *working
	return nil
}

// Savepoint discards fn's writes when it fails, keeping the enclosing transaction
func (s *Store) Savepoint(ctx context.Context, fn func(repo store.Repository) error) error {
	if !s.inTx {
		return s.InTx(ctx, fn)
	}

	working := s.data.clone()
	if err := fn(&Store{mu: s.mu, data: working, inTx: true}); err != nil {
		return err
	}
	*s.data = *working
	return nil
}

// InsertTeamIfAbsent inserts the team unless its id is already stored
func (s *Store) InsertTeamIfAbsent(ctx context.Context, team *store.Team) (bool, error) {
	defer s.lock()()
	if _, ok := s.data.teams[team.TeamID]; ok {
		return false, nil
	}
	s.data.teams[team.TeamID] = *team
	return true, nil
}

// GetTeam finds a team by ID
func (s *Store) GetTeam(ctx context.Context, teamID int64) (*store.Team, error) {
	defer s.rlock()()
	team, ok := s.data.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("team %d: %w", teamID, store.ErrNotFound)
	}
	return &team, nil
}

// GetTeamByAbbreviation finds the lowest-id team with the abbreviation
func (s *Store) GetTeamByAbbreviation(ctx context.Context, abbr string) (*store.Team, error) {
	defer s.rlock()()
	var found *store.Team
	for _, team := range s.data.teams {
		if team.Abbreviation != abbr {
			continue
		}
		if found == nil || team.TeamID < found.TeamID {
			t := team
			found = &t
		}
	}
	if found == nil {
		return nil, fmt.Errorf("team %s: %w", abbr, store.ErrNotFound)
	}
	return found, nil
}

// ListTeams returns all teams ordered by abbreviation
func (s *Store) ListTeams(ctx context.Context) ([]*store.Team, error) {
	defer s.rlock()()
	teams := make([]*store.Team, 0, len(s.data.teams))
	for _, team := range s.data.teams {
		t := team
		teams = append(teams, &t)
	}
	sort.Slice(teams, func(i, j int) bool {
		return strings.Compare(teams[i].Abbreviation, teams[j].Abbreviation) < 0
	})
	return teams, nil
}

// UpdateTeamStandings sets conference and division on every team matching
// abbr. Empty values keep what is stored.
func (s *Store) UpdateTeamStandings(ctx context.Context, abbr, conference, division string) (int64, error) {
	defer s.lock()()
	var n int64
	for id, team := range s.data.teams {
		if team.Abbreviation != abbr {
			continue
		}
		if conference != "" {
			team.Conference = sql.NullString{String: conference, Valid: true}
		}
		if division != "" {
			team.Division = sql.NullString{String: division, Valid: true}
		}
		s.data.teams[id] = team
		n++
	}
	return n, nil
}

// GetGame finds a game by ID
func (s *Store) GetGame(ctx context.Context, gameID int64) (*store.Game, error) {
	defer s.rlock()()
	game, ok := s.data.games[gameID]
	if !ok {
		return nil, fmt.Errorf("game %d: %w", gameID, store.ErrNotFound)
	}
	return &game, nil
}

// UpsertGame inserts or fully replaces the game row
func (s *Store) UpsertGame(ctx context.Context, game *store.Game) error {
	defer s.lock()()
	for _, teamID := range []int64{game.HomeTeamID, game.AwayTeamID} {
		if _, ok := s.data.teams[teamID]; !ok {
			return fmt.Errorf("upserting game %d: team %d: %w", game.GameID, teamID, store.ErrNotFound)
		}
	}
	if game.HomeTeamID == game.AwayTeamID {
		return fmt.Errorf("upserting game %d: home and away team are both %d", game.GameID, game.HomeTeamID)
	}
	s.data.games[game.GameID] = *game
	return nil
}

// ListGamesByDate returns the games on a date ordered by ID
func (s *Store) ListGamesByDate(ctx context.Context, date string) ([]*store.Game, error) {
	return s.filterGames(func(g *store.Game) bool { return g.Date() == date }), nil
}

// ListGamesByDateAndState returns the games on a date in the given state
func (s *Store) ListGamesByDateAndState(ctx context.Context, date string, state store.GameState) ([]*store.Game, error) {
	return s.filterGames(func(g *store.Game) bool { return g.Date() == date && g.State == state }), nil
}

// ListFinalGamesByTeam returns a team's final games, most recent first
func (s *Store) ListFinalGamesByTeam(ctx context.Context, teamID int64, limit int) ([]*store.Game, error) {
	games := s.filterGames(func(g *store.Game) bool {
		return g.State == store.StateFinal && g.Involves(teamID)
	})
	sort.SliceStable(games, func(i, j int) bool {
		if !games[i].GameDate.Equal(games[j].GameDate) {
			return games[i].GameDate.After(games[j].GameDate)
		}
		return games[i].GameID > games[j].GameID
	})
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func (s *Store) filterGames(keep func(g *store.Game) bool) []*store.Game {
	defer s.rlock()()
	var games []*store.Game
	for _, game := range s.data.games {
		g := game
		if keep(&g) {
			games = append(games, &g)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].GameID < games[j].GameID })
	return games
}

// GetPredictionByGame returns the latest prediction for a game
func (s *Store) GetPredictionByGame(ctx context.Context, gameID int64) (*store.Prediction, error) {
	defer s.rlock()()
	var found *store.Prediction
	for _, p := range s.data.predictions {
		if p.GameID != gameID {
			continue
		}
		if found == nil || p.PredictionID > found.PredictionID {
			pc := p
			found = &pc
		}
	}
	if found == nil {
		return nil, fmt.Errorf("prediction for game %d: %w", gameID, store.ErrNotFound)
	}
	return found, nil
}

// InsertPrediction stores the prediction under the next auto-increment ID
func (s *Store) InsertPrediction(ctx context.Context, p *store.Prediction) error {
	defer s.lock()()
	if _, ok := s.data.games[p.GameID]; !ok {
		return fmt.Errorf("inserting prediction for game %d: %w", p.GameID, store.ErrNotFound)
	}
	if _, ok := s.data.teams[p.PredictedWinnerID]; !ok {
		return fmt.Errorf("inserting prediction for game %d: team %d: %w", p.GameID, p.PredictedWinnerID, store.ErrNotFound)
	}
	s.data.nextPredictionID++
	p.PredictionID = s.data.nextPredictionID
	s.data.predictions[p.PredictionID] = *p
	return nil
}

// DeletePredictionsByGame removes every prediction for a game
func (s *Store) DeletePredictionsByGame(ctx context.Context, gameID int64) (int64, error) {
	defer s.lock()()
	var n int64
	for id, p := range s.data.predictions {
		if p.GameID == gameID {
			delete(s.data.predictions, id)
			n++
		}
	}
	return n, nil
}

// ListPredictionsByDate returns the predictions for games on a date
func (s *Store) ListPredictionsByDate(ctx context.Context, date string) ([]*store.Prediction, error) {
	return s.filterPredictions(func(p *store.Prediction) bool {
		game, ok := s.data.games[p.GameID]
		return ok && game.Date() == date
	}), nil
}

// ListPendingEvaluations returns unevaluated predictions whose game is final
func (s *Store) ListPendingEvaluations(ctx context.Context) ([]*store.PendingEvaluation, error) {
	predictions := s.filterPredictions(func(p *store.Prediction) bool {
		game, ok := s.data.games[p.GameID]
		return !p.Correct.Valid && ok && game.State == store.StateFinal
	})

	defer s.rlock()()
	pending := make([]*store.PendingEvaluation, 0, len(predictions))
	for _, p := range predictions {
		pending = append(pending, &store.PendingEvaluation{
			Prediction: p,
			WinnerID:   s.data.games[p.GameID].WinnerID,
		})
	}
	return pending, nil
}

// SetPredictionCorrect records the evaluation outcome
func (s *Store) SetPredictionCorrect(ctx context.Context, predictionID int64, correct bool) error {
	defer s.lock()()
	p, ok := s.data.predictions[predictionID]
	if !ok {
		return fmt.Errorf("prediction %d: %w", predictionID, store.ErrNotFound)
	}
	p.Correct = sql.NullBool{Bool: correct, Valid: true}
	s.data.predictions[predictionID] = p
	return nil
}

// ListEvaluatedPredictions returns predictions that carry a correctness flag
func (s *Store) ListEvaluatedPredictions(ctx context.Context) ([]*store.Prediction, error) {
	return s.filterPredictions(func(p *store.Prediction) bool { return p.Correct.Valid }), nil
}

func (s *Store) filterPredictions(keep func(p *store.Prediction) bool) []*store.Prediction {
	defer s.rlock()()
	var predictions []*store.Prediction
	for _, p := range s.data.predictions {
		pc := p
		if keep(&pc) {
			predictions = append(predictions, &pc)
		}
	}
	sort.Slice(predictions, func(i, j int) bool {
		return predictions[i].PredictionID < predictions[j].PredictionID
	})
	return predictions
}
