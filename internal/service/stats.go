package service

import (
	"context"
	"fmt"

	"github.com/fortuna/aurora/internal/store"
	"github.com/sirupsen/logrus"
)

const recentFormGames = 5

// Record is a wins / regulation losses / extended losses triple
type Record struct {
	Wins     int `json:"wins"`
	Losses   int `json:"losses"`
	OTLosses int `json:"ot_losses"`
}

// Decided returns the number of games with a result
func (r Record) Decided() int {
	return r.Wins + r.Losses + r.OTLosses
}

// Points returns standings points: two per win, one per extended loss
func (r Record) Points() int {
	return 2*r.Wins + r.OTLosses
}

// PointsPercentage returns points earned over points available, 0 with no games
func (r Record) PointsPercentage() float64 {
	return safeDiv(float64(r.Points()), float64(2*r.Decided()))
}

func (r *Record) add(won, extended bool) {
	switch {
	case won:
		r.Wins++
	case extended:
		r.OTLosses++
	default:
		r.Losses++
	}
}

// TeamStats aggregates a team's decided final games
type TeamStats struct {
	TeamID              int64   `json:"team_id"`
	GamesPlayed         int     `json:"games_played"`
	Wins                int     `json:"wins"`
	Losses              int     `json:"losses"`
	OTLosses            int     `json:"ot_losses"`
	Points              int     `json:"points"`
	PointsPercentage    float64 `json:"points_percentage"`
	GoalsFor            int     `json:"goals_for"`
	GoalsAgainst        int     `json:"goals_against"`
	GoalDifferential    int     `json:"goal_differential"`
	GoalsForPerGame     float64 `json:"goals_for_per_game"`
	GoalsAgainstPerGame float64 `json:"goals_against_per_game"`
	Home                Record  `json:"home"`
	Away                Record  `json:"away"`
	LastFive            Record  `json:"last_five"`
}

// StatsService computes team statistics from stored results
type StatsService struct {
	repo   store.Repository
	logger *logrus.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(repo store.Repository, logger *logrus.Logger) *StatsService {
	return &StatsService{repo: repo, logger: logger}
}

// TeamStats folds every final game of the team into season totals. Games
// without a winner or without both scores are not counted. Read-only.
func (s *StatsService) TeamStats(ctx context.Context, teamID int64) (*TeamStats, error) {
	if _, err := s.repo.GetTeam(ctx, teamID); err != nil {
		return nil, fmt.Errorf("fetching team: %w", err)
	}

	games, err := s.repo.ListFinalGamesByTeam(ctx, teamID, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching final games: %w", err)
	}

	return aggregate(teamID, games), nil
}

// aggregate expects games ordered most recent first
func aggregate(teamID int64, games []*store.Game) *TeamStats {
	stats := &TeamStats{TeamID: teamID}
	var total Record

	for _, game := range games {
		if !game.WinnerID.Valid || !game.HomeScore.Valid || !game.AwayScore.Valid {
			continue
		}

		isHome := game.HomeTeamID == teamID
		goalsFor, goalsAgainst := int(game.HomeScore.Int32), int(game.AwayScore.Int32)
		if !isHome {
			goalsFor, goalsAgainst = goalsAgainst, goalsFor
		}
		won := game.WinnerID.Int64 == teamID
		extended := store.WinType(game.WinType.String).Extended()

		total.add(won, extended)
		if isHome {
			stats.Home.add(won, extended)
		} else {
			stats.Away.add(won, extended)
		}
		if stats.LastFive.Decided() < recentFormGames {
			stats.LastFive.add(won, extended)
		}

		stats.GoalsFor += goalsFor
		stats.GoalsAgainst += goalsAgainst
	}

	decided := float64(total.Decided())
	stats.GamesPlayed = total.Decided()
	stats.Wins = total.Wins
	stats.Losses = total.Losses
	stats.OTLosses = total.OTLosses
	stats.Points = total.Points()
	stats.PointsPercentage = total.PointsPercentage()
	stats.GoalDifferential = stats.GoalsFor - stats.GoalsAgainst
	stats.GoalsForPerGame = safeDiv(float64(stats.GoalsFor), decided)
	stats.GoalsAgainstPerGame = safeDiv(float64(stats.GoalsAgainst), decided)

	return stats
}

// RecentGames returns the team's last n final games, most recent first
func (s *StatsService) RecentGames(ctx context.Context, teamID int64, n int) ([]*store.Game, error) {
	if n <= 0 {
		n = recentFormGames
	}
	games, err := s.repo.ListFinalGamesByTeam(ctx, teamID, n)
	if err != nil {
		return nil, fmt.Errorf("fetching recent games: %w", err)
	}
	return games, nil
}

// safeDiv performs division with zero check
func safeDiv(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
