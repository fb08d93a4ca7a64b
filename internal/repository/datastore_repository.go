package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jbweber/homelab/parkingcontrol/internal/datastore"
)

// DatastoreRepository is the shared SQL plumbing for concrete repositories.
// A zero tx means statements run directly against the pool; otherwise every
// statement is rebound to tx.
type DatastoreRepository struct {
	ds    *datastore.Datastore
	stmts *PreparedStatementCache
	tx    *sql.Tx
}

// NewDatastoreRepository creates repository plumbing over the datastore
func NewDatastoreRepository(ds *datastore.Datastore) *DatastoreRepository {
	return &DatastoreRepository{
		ds:    ds,
		stmts: NewPreparedStatementCache(ds.DB),
	}
}

// InTx reports whether the repository is bound to a transaction
func (r *DatastoreRepository) InTx() bool {
	return r.tx != nil
}

// Close releases cached prepared statements
func (r *DatastoreRepository) Close() error {
	return r.stmts.Close()
}

func (r *DatastoreRepository) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if r.tx != nil {
		return r.stmts.GetTx(ctx, r.tx, query)
	}
	return r.stmts.Get(ctx, query)
}

func (r *DatastoreRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	stmt, err := r.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

func (r *DatastoreRepository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmt, err := r.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

func (r *DatastoreRepository) queryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	stmt, err := r.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryRowContext(ctx, args...), nil
}

// exists runs a SELECT EXISTS(...) query and returns its result
func (r *DatastoreRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	row, err := r.queryRow(ctx, query, args...)
	if err != nil {
		return false, err
	}
	var found bool
	if err := row.Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// withinTx runs fn with a copy of the plumbing bound to a transaction.
// Nested calls reuse the outer transaction.
func (r *DatastoreRepository) withinTx(ctx context.Context, fn func(*DatastoreRepository) error) error {
	if r.InTx() {
		return fn(r)
	}

	tx, err := r.ds.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			log.Printf("failed to roll back transaction: %v", rollbackErr)
		}
	}()

	bound := &DatastoreRepository{ds: r.ds, stmts: r.stmts, tx: tx}
	if err := fn(bound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isNotFoundError checks if an error is a "not found" error from the database
func isNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation checks if an error is a UNIQUE constraint failure
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
