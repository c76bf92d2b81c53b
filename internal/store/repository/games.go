package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/aurora/internal/store"
)

const gameColumns = `game_id, game_date, home_team_id, away_team_id, home_score, away_score,
	game_state, winner_id, win_type`

// GetGame finds a game by its feed ID
func (r *Postgres) GetGame(ctx context.Context, gameID int64) (*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE game_id = $1`

	game, err := scanGame(r.q.QueryRowContext(ctx, query, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %d: %w", gameID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying game: %w", err)
	}
	return game, nil
}

// UpsertGame inserts a game or replaces every mutable field of the stored row
func (r *Postgres) UpsertGame(ctx context.Context, game *store.Game) error {
	query := `
		INSERT INTO games (game_id, game_date, home_team_id, away_team_id,
			home_score, away_score, game_state, winner_id, win_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (game_id) DO UPDATE SET
			game_date = EXCLUDED.game_date,
			home_team_id = EXCLUDED.home_team_id,
			away_team_id = EXCLUDED.away_team_id,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			game_state = EXCLUDED.game_state,
			winner_id = EXCLUDED.winner_id,
			win_type = EXCLUDED.win_type,
			updated_at = NOW()
	`

	_, err := r.q.ExecContext(ctx, query,
		game.GameID, game.GameDate, game.HomeTeamID, game.AwayTeamID,
		game.HomeScore, game.AwayScore, string(game.State), game.WinnerID, game.WinType,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("upserting game %d: team reference: %w", game.GameID, store.ErrNotFound)
		}
		return fmt.Errorf("upserting game %d: %w", game.GameID, err)
	}

	return nil
}

// ListGamesByDate returns all games on a calendar date (YYYY-MM-DD)
func (r *Postgres) ListGamesByDate(ctx context.Context, date string) ([]*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE game_date = $1 ORDER BY game_id`

	rows, err := r.q.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// ListGamesByDateAndState returns the games on a date that are in the given state
func (r *Postgres) ListGamesByDateAndState(ctx context.Context, date string, state store.GameState) ([]*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE game_date = $1 AND game_state = $2 ORDER BY game_id`

	rows, err := r.q.QueryContext(ctx, query, date, string(state))
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// ListFinalGamesByTeam returns a team's finished games, most recent first
func (r *Postgres) ListFinalGamesByTeam(ctx context.Context, teamID int64, limit int) ([]*store.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE (home_team_id = $1 OR away_team_id = $1)
			AND game_state = 'final'
		ORDER BY game_date DESC, game_id DESC
		LIMIT $2
	`

	// LIMIT NULL means no limit in PostgreSQL
	lim := sql.NullInt64{Int64: int64(limit), Valid: limit > 0}

	rows, err := r.q.QueryContext(ctx, query, teamID, lim)
	if err != nil {
		return nil, fmt.Errorf("querying team games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

func scanGame(row rowScanner) (*store.Game, error) {
	game := &store.Game{}
	var state string
	err := row.Scan(
		&game.GameID, &game.GameDate, &game.HomeTeamID, &game.AwayTeamID,
		&game.HomeScore, &game.AwayScore, &state, &game.WinnerID, &game.WinType,
	)
	if err != nil {
		return nil, err
	}
	game.State = store.GameState(state)
	return game, nil
}

func scanGames(rows *sql.Rows) ([]*store.Game, error) {
	var games []*store.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}

	return games, rows.Err()
}
