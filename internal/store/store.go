package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Repository is the persistence contract for teams, games and predictions.
// Implementations: repository.Postgres (production) and memstore.Store
// (dry runs and tests).
type Repository interface {
	// InsertTeamIfAbsent inserts the team unless a row with its id exists.
	// Reports whether a row was inserted.
	InsertTeamIfAbsent(ctx context.Context, team *Team) (bool, error)
	GetTeam(ctx context.Context, teamID int64) (*Team, error)
	GetTeamByAbbreviation(ctx context.Context, abbr string) (*Team, error)
	ListTeams(ctx context.Context) ([]*Team, error)
	// UpdateTeamStandings sets conference/division on the team matching abbr
	// and returns the number of rows affected.
	UpdateTeamStandings(ctx context.Context, abbr, conference, division string) (int64, error)

	GetGame(ctx context.Context, gameID int64) (*Game, error)
	// UpsertGame inserts the game or replaces every field of the existing row.
	UpsertGame(ctx context.Context, game *Game) error
	ListGamesByDate(ctx context.Context, date string) ([]*Game, error)
	ListGamesByDateAndState(ctx context.Context, date string, state GameState) ([]*Game, error)
	// ListFinalGamesByTeam returns the team's final games, most recent first.
	// limit <= 0 means no limit.
	ListFinalGamesByTeam(ctx context.Context, teamID int64, limit int) ([]*Game, error)

	GetPredictionByGame(ctx context.Context, gameID int64) (*Prediction, error)
	// InsertPrediction stores the prediction and sets its PredictionID.
	InsertPrediction(ctx context.Context, p *Prediction) error
	DeletePredictionsByGame(ctx context.Context, gameID int64) (int64, error)
	ListPredictionsByDate(ctx context.Context, date string) ([]*Prediction, error)
	// ListPendingEvaluations returns unevaluated predictions whose game is final.
	ListPendingEvaluations(ctx context.Context) ([]*PendingEvaluation, error)
	SetPredictionCorrect(ctx context.Context, predictionID int64, correct bool) error
	ListEvaluatedPredictions(ctx context.Context) ([]*Prediction, error)

	// InTx runs fn inside a transaction; fn's error rolls everything back.
	InTx(ctx context.Context, fn func(repo Repository) error) error
	// Savepoint runs fn so that its writes are undone if it fails, without
	// aborting an enclosing transaction.
	Savepoint(ctx context.Context, fn func(repo Repository) error) error
}
