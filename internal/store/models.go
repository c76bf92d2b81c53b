package store

import (
	"database/sql"
	"time"
)

// GameState is the lifecycle state of a game
type GameState string

const (
	StateScheduled GameState = "scheduled"
	StateLive      GameState = "live"
	StateFinal     GameState = "final"
)

// rank orders states along the lifecycle; unknown states rank as scheduled.
func (s GameState) rank() int {
	switch s {
	case StateLive:
		return 1
	case StateFinal:
		return 2
	default:
		return 0
	}
}

// Valid reports whether s is one of the three canonical states.
func (s GameState) Valid() bool {
	return s == StateScheduled || s == StateLive || s == StateFinal
}

// Regresses reports whether moving from s to next would go back in the lifecycle.
func (s GameState) Regresses(next GameState) bool {
	return next.rank() < s.rank()
}

// WinType describes how a final game was decided
type WinType string

const (
	WinRegulation WinType = "regulation"
	WinOvertime   WinType = "overtime"
	WinShootout   WinType = "shootout"
)

// Extended reports whether the game went past regulation. The loser of an
// extended game still earns a standings point.
func (w WinType) Extended() bool {
	return w == WinOvertime || w == WinShootout
}

// Team represents an NHL franchise
type Team struct {
	TeamID       int64          `json:"team_id" db:"team_id"`
	Name         string         `json:"team_name" db:"team_name"`
	Abbreviation string         `json:"abbreviation" db:"abbreviation"`
	Conference   sql.NullString `json:"conference,omitempty" db:"conference"`
	Division     sql.NullString `json:"division,omitempty" db:"division"`
}

// Game represents a single scheduled, live or finished game
type Game struct {
	GameID     int64          `json:"game_id" db:"game_id"`
	GameDate   time.Time      `json:"game_date" db:"game_date"`
	HomeTeamID int64          `json:"home_team_id" db:"home_team_id"`
	AwayTeamID int64          `json:"away_team_id" db:"away_team_id"`
	HomeScore  sql.NullInt32  `json:"home_score,omitempty" db:"home_score"`
	AwayScore  sql.NullInt32  `json:"away_score,omitempty" db:"away_score"`
	State      GameState      `json:"game_state" db:"game_state"`
	WinnerID   sql.NullInt64  `json:"winner_id,omitempty" db:"winner_id"`
	WinType    sql.NullString `json:"win_type,omitempty" db:"win_type"`
}

// Date returns the game date in YYYY-MM-DD form
func (g *Game) Date() string {
	return g.GameDate.Format(DateLayout)
}

// Involves reports whether the team played in the game
func (g *Game) Involves(teamID int64) bool {
	return g.HomeTeamID == teamID || g.AwayTeamID == teamID
}

// Prediction is a persisted pre-game winner pick
type Prediction struct {
	PredictionID      int64        `json:"prediction_id" db:"prediction_id"`
	GameID            int64        `json:"game_id" db:"game_id"`
	PredictedWinnerID int64        `json:"predicted_winner_id" db:"predicted_winner_id"`
	Confidence        float64      `json:"confidence" db:"confidence"`
	CreatedAt         time.Time    `json:"prediction_date" db:"prediction_date"`
	Correct           sql.NullBool `json:"correct,omitempty" db:"correct"`
}

// PendingEvaluation joins an unevaluated prediction with its finished game's winner.
type PendingEvaluation struct {
	Prediction *Prediction
	WinnerID   sql.NullInt64
}

// DateLayout is the calendar date format used by the feed and the games table.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
