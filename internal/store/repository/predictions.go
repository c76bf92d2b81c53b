package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/aurora/internal/store"
)

const predictionColumns = `p.prediction_id, p.game_id, p.predicted_winner_id, p.confidence,
	p.prediction_date, p.correct`

// GetPredictionByGame returns the current (latest) prediction for a game
func (r *Postgres) GetPredictionByGame(ctx context.Context, gameID int64) (*store.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions p
		WHERE p.game_id = $1
		ORDER BY p.prediction_id DESC
		LIMIT 1
	`

	p, err := scanPrediction(r.q.QueryRowContext(ctx, query, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction for game %d: %w", gameID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying prediction: %w", err)
	}
	return p, nil
}

// InsertPrediction stores a new prediction and sets its generated ID
func (r *Postgres) InsertPrediction(ctx context.Context, p *store.Prediction) error {
	query := `
		INSERT INTO predictions (game_id, predicted_winner_id, confidence, prediction_date, correct)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING prediction_id
	`

	err := r.q.QueryRowContext(ctx, query,
		p.GameID, p.PredictedWinnerID, p.Confidence, p.CreatedAt, p.Correct,
	).Scan(&p.PredictionID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("inserting prediction for game %d: %w", p.GameID, store.ErrNotFound)
		}
		return fmt.Errorf("inserting prediction for game %d: %w", p.GameID, err)
	}
	return nil
}

// DeletePredictionsByGame removes every prediction for a game
func (r *Postgres) DeletePredictionsByGame(ctx context.Context, gameID int64) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM predictions WHERE game_id = $1`, gameID)
	if err != nil {
		return 0, fmt.Errorf("deleting predictions for game %d: %w", gameID, err)
	}
	return result.RowsAffected()
}

// ListPredictionsByDate returns predictions for games on a calendar date
func (r *Postgres) ListPredictionsByDate(ctx context.Context, date string) ([]*store.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions p
		JOIN games g ON g.game_id = p.game_id
		WHERE g.game_date = $1
		ORDER BY p.game_id, p.prediction_id
	`

	rows, err := r.q.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("querying predictions: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// ListPendingEvaluations returns unevaluated predictions for final games
func (r *Postgres) ListPendingEvaluations(ctx context.Context) ([]*store.PendingEvaluation, error) {
	query := `
		SELECT ` + predictionColumns + `, g.winner_id
		FROM predictions p
		JOIN games g ON g.game_id = p.game_id
		WHERE p.correct IS NULL AND g.game_state = 'final'
		ORDER BY p.prediction_id
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying pending evaluations: %w", err)
	}
	defer rows.Close()

	var pending []*store.PendingEvaluation
	for rows.Next() {
		p := &store.Prediction{}
		pe := &store.PendingEvaluation{Prediction: p}
		if err := rows.Scan(
			&p.PredictionID, &p.GameID, &p.PredictedWinnerID, &p.Confidence,
			&p.CreatedAt, &p.Correct, &pe.WinnerID,
		); err != nil {
			return nil, fmt.Errorf("scanning pending evaluation: %w", err)
		}
		pending = append(pending, pe)
	}

	return pending, rows.Err()
}

// SetPredictionCorrect records the evaluation outcome of a prediction
func (r *Postgres) SetPredictionCorrect(ctx context.Context, predictionID int64, correct bool) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE predictions SET correct = $2 WHERE prediction_id = $1`, predictionID, correct,
	)
	if err != nil {
		return fmt.Errorf("updating prediction %d: %w", predictionID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating prediction %d: %w", predictionID, err)
	}
	if n == 0 {
		return fmt.Errorf("prediction %d: %w", predictionID, store.ErrNotFound)
	}
	return nil
}

// ListEvaluatedPredictions returns every prediction with a correctness flag
func (r *Postgres) ListEvaluatedPredictions(ctx context.Context) ([]*store.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions p
		WHERE p.correct IS NOT NULL
		ORDER BY p.prediction_id
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying evaluated predictions: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

func scanPrediction(row rowScanner) (*store.Prediction, error) {
	p := &store.Prediction{}
	err := row.Scan(&p.PredictionID, &p.GameID, &p.PredictedWinnerID, &p.Confidence, &p.CreatedAt, &p.Correct)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanPredictions(rows *sql.Rows) ([]*store.Prediction, error) {
	var predictions []*store.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning prediction: %w", err)
		}
		predictions = append(predictions, p)
	}

	return predictions, rows.Err()
}
