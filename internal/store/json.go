package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// The JSON forms below render nullable columns as null instead of
// database/sql's {"Valid": ...} structs.

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullableInt32(n sql.NullInt32) *int32 {
	if !n.Valid {
		return nil
	}
	return &n.Int32
}

func nullableInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

func nullableBool(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	return &b.Bool
}

// MarshalJSON implements json.Marshaler
func (t Team) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TeamID       int64   `json:"team_id"`
		Name         string  `json:"team_name"`
		Abbreviation string  `json:"abbreviation"`
		Conference   *string `json:"conference"`
		Division     *string `json:"division"`
	}{t.TeamID, t.Name, t.Abbreviation, nullableString(t.Conference), nullableString(t.Division)})
}

// MarshalJSON implements json.Marshaler
func (g Game) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		GameID     int64     `json:"game_id"`
		GameDate   string    `json:"game_date"`
		HomeTeamID int64     `json:"home_team_id"`
		AwayTeamID int64     `json:"away_team_id"`
		HomeScore  *int32    `json:"home_score"`
		AwayScore  *int32    `json:"away_score"`
		State      GameState `json:"game_state"`
		WinnerID   *int64    `json:"winner_id"`
		WinType    *string   `json:"win_type"`
	}{
		g.GameID, g.Date(), g.HomeTeamID, g.AwayTeamID,
		nullableInt32(g.HomeScore), nullableInt32(g.AwayScore),
		g.State, nullableInt64(g.WinnerID), nullableString(g.WinType),
	})
}

// MarshalJSON implements json.Marshaler
func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PredictionID      int64     `json:"prediction_id"`
		GameID            int64     `json:"game_id"`
		PredictedWinnerID int64     `json:"predicted_winner_id"`
		Confidence        float64   `json:"confidence"`
		CreatedAt         time.Time `json:"prediction_date"`
		Correct           *bool     `json:"correct"`
	}{p.PredictionID, p.GameID, p.PredictedWinnerID, p.Confidence, p.CreatedAt, nullableBool(p.Correct)})
}
