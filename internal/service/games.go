package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/aurora/internal/store"
)

// GameService handles game and team lookups for display
type GameService struct {
	repo store.Repository
}

// NewGameService creates a new game service
func NewGameService(repo store.Repository) *GameService {
	return &GameService{repo: repo}
}

// GameSummary contains game details with team information and the current
// prediction, if any
type GameSummary struct {
	Game       *store.Game       `json:"game"`
	HomeTeam   *store.Team       `json:"home_team"`
	AwayTeam   *store.Team       `json:"away_team"`
	Prediction *store.Prediction `json:"prediction,omitempty"`
}

// GetGame retrieves a game by ID with team details
func (s *GameService) GetGame(ctx context.Context, gameID int64) (*GameSummary, error) {
	game, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetching game: %w", err)
	}
	return s.summarize(ctx, game)
}

// GamesByDate retrieves all games on a date (YYYY-MM-DD) with team details
func (s *GameService) GamesByDate(ctx context.Context, date string) ([]*GameSummary, error) {
	games, err := s.repo.ListGamesByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetching games by date: %w", err)
	}

	summaries := make([]*GameSummary, 0, len(games))
	for _, game := range games {
		summary, err := s.summarize(ctx, game)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Teams returns every stored team
func (s *GameService) Teams(ctx context.Context) ([]*store.Team, error) {
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching teams: %w", err)
	}
	return teams, nil
}

// Team returns one stored team
func (s *GameService) Team(ctx context.Context, teamID int64) (*store.Team, error) {
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("fetching team: %w", err)
	}
	return team, nil
}

// PredictionsByDate returns the predictions for games on a date
func (s *GameService) PredictionsByDate(ctx context.Context, date string) ([]*store.Prediction, error) {
	predictions, err := s.repo.ListPredictionsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetching predictions: %w", err)
	}
	return predictions, nil
}

func (s *GameService) summarize(ctx context.Context, game *store.Game) (*GameSummary, error) {
	homeTeam, err := s.repo.GetTeam(ctx, game.HomeTeamID)
	if err != nil {
		return nil, fmt.Errorf("fetching home team for game %d: %w", game.GameID, err)
	}

	awayTeam, err := s.repo.GetTeam(ctx, game.AwayTeamID)
	if err != nil {
		return nil, fmt.Errorf("fetching away team for game %d: %w", game.GameID, err)
	}

	summary := &GameSummary{Game: game, HomeTeam: homeTeam, AwayTeam: awayTeam}

	prediction, err := s.repo.GetPredictionByGame(ctx, game.GameID)
	switch {
	case err == nil:
		summary.Prediction = prediction
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("fetching prediction for game %d: %w", game.GameID, err)
	}

	return summary, nil
}
