package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/aurora/internal/store"
)

const teamColumns = `team_id, team_name, abbreviation, conference, division`

// InsertTeamIfAbsent inserts a team the first time its id is seen.
// An existing row is never overwritten here; standings enrichment owns updates.
func (r *Postgres) InsertTeamIfAbsent(ctx context.Context, team *store.Team) (bool, error) {
	query := `
		INSERT INTO teams (team_id, team_name, abbreviation, conference, division)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (team_id) DO NOTHING
	`

	result, err := r.q.ExecContext(ctx, query,
		team.TeamID, team.Name, team.Abbreviation, team.Conference, team.Division,
	)
	if err != nil {
		return false, fmt.Errorf("inserting team %d: %w", team.TeamID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting team %d: %w", team.TeamID, err)
	}
	return n > 0, nil
}

// GetTeam finds a team by ID
func (r *Postgres) GetTeam(ctx context.Context, teamID int64) (*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE team_id = $1`

	team, err := scanTeam(r.q.QueryRowContext(ctx, query, teamID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %d: %w", teamID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying team: %w", err)
	}
	return team, nil
}

// GetTeamByAbbreviation finds a team by abbreviation (e.g., "TOR", "BOS")
func (r *Postgres) GetTeamByAbbreviation(ctx context.Context, abbr string) (*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE abbreviation = $1 ORDER BY team_id LIMIT 1`

	team, err := scanTeam(r.q.QueryRowContext(ctx, query, abbr))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", abbr, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying team: %w", err)
	}
	return team, nil
}

// ListTeams returns all stored teams ordered by abbreviation
func (r *Postgres) ListTeams(ctx context.Context) ([]*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams ORDER BY abbreviation`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	var teams []*store.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, team)
	}

	return teams, rows.Err()
}

// UpdateTeamStandings sets conference and division by abbreviation match.
// Empty values keep the stored column.
func (r *Postgres) UpdateTeamStandings(ctx context.Context, abbr, conference, division string) (int64, error) {
	query := `
		UPDATE teams
		SET conference = COALESCE($2, conference), division = COALESCE($3, division), updated_at = NOW()
		WHERE abbreviation = $1
	`

	result, err := r.q.ExecContext(ctx, query, abbr, nullString(conference), nullString(division))
	if err != nil {
		return 0, fmt.Errorf("updating standings for %s: %w", abbr, err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTeam(row rowScanner) (*store.Team, error) {
	team := &store.Team{}
	err := row.Scan(&team.TeamID, &team.Name, &team.Abbreviation, &team.Conference, &team.Division)
	if err != nil {
		return nil, err
	}
	return team, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
