package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jbweber/homelab/parkingcontrol/internal/migrations"
	_ "modernc.org/sqlite"
)

// Datastore owns the SQLite connection pool backing the record store.
type Datastore struct {
	DB *sql.DB
}

type options struct {
	strictUniqueness bool
}

// Option configures New.
type Option func(*options)

// WithStrictUniqueness applies the unique-index migrations so the database
// rejects duplicate plates, spot numbers and apartment/block pairs.
func WithStrictUniqueness(enabled bool) Option {
	return func(o *options) {
		o.strictUniqueness = enabled
	}
}

// New opens the SQLite database at dsn, enables foreign keys and runs migrations.
func New(dsn string, opts ...Option) (*Datastore, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := migrate(db, o); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Datastore{DB: db}, nil
}

// migrate applies the initial schema and, when requested, the strict uniqueness indices.
func migrate(db *sql.DB, o options) error {
	migrator := migrations.NewMigrator(db)
	migrator.AddMigrations(migrations.GetInitialMigrations())
	if o.strictUniqueness {
		migrator.AddMigrations(migrations.GetStrictUniquenessMigrations())
	}
	return migrator.RunMigrations()
}

// SchemaVersion returns the highest applied migration version.
func (ds *Datastore) SchemaVersion() (int64, error) {
	return migrations.NewMigrator(ds.DB).GetCurrentVersion()
}

// Ping verifies the database is reachable.
func (ds *Datastore) Ping(ctx context.Context) error {
	return ds.DB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (ds *Datastore) Close() error {
	return ds.DB.Close()
}
