package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/aurora/internal/store"
	"github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Postgres implements store.Repository on top of the PostgreSQL database.
// A Postgres value bound to a transaction is handed to InTx callbacks.
type Postgres struct {
	db *store.Database
	q  DBTX
	tx *sql.Tx

	// savepoint counter, shared by everything bound to the same transaction
	savepoints *int
}

var _ store.Repository = (*Postgres)(nil)

// NewPostgres creates a repository that runs statements directly on the pool
func NewPostgres(db *store.Database) *Postgres {
	return &Postgres{db: db, q: db.DB()}
}

// InTx runs fn inside a transaction. Nested calls join the outer transaction.
func (r *Postgres) InTx(ctx context.Context, fn func(repo store.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	bound := &Postgres{db: r.db, q: tx, tx: tx, savepoints: new(int)}
	if err := fn(bound); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Savepoint runs fn under a SAVEPOINT so a failing fn only discards its own
// writes. Outside a transaction it behaves like InTx.
func (r *Postgres) Savepoint(ctx context.Context, fn func(repo store.Repository) error) error {
	if r.tx == nil {
		return r.InTx(ctx, fn)
	}

	*r.savepoints++
	name := fmt.Sprintf("sp_%d", *r.savepoints)

	if _, err := r.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}

	if err := fn(r); err != nil {
		if _, rbErr := r.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint failed: %v)", err, rbErr)
		}
		return err
	}

	if _, err := r.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}
	return nil
}

// isForeignKeyViolation reports whether err is a PostgreSQL FK violation (23503)
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
