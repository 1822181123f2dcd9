// Package postgres loads the penguins dataset from a Postgres table through
// the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"penguinboard/internal/infra/persistence/sqltable"
	"penguinboard/pkg/penguins"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/penguinboard?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect is the Postgres flavour of the penguins table.
var Dialect = sqltable.Dialect{
	Name: "postgres",
	CreateTable: `CREATE TABLE IF NOT EXISTS penguins (
		id BIGSERIAL PRIMARY KEY,
		species TEXT NOT NULL,
		island TEXT NOT NULL DEFAULT '',
		bill_length_mm DOUBLE PRECISION,
		bill_depth_mm DOUBLE PRECISION,
		flipper_length_mm DOUBLE PRECISION,
		body_mass_g DOUBLE PRECISION,
		sex TEXT,
		year INTEGER
	)`,
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

// Store reads the penguins table of a Postgres database.
type Store struct {
	db     *sql.DB
	seeded int
}

// NewStore opens dsn (falls back to defaultDSN), pings it, ensures the table
// exists and seeds it from seed when it holds no rows.
func NewStore(ctx context.Context, dsn string, seed penguins.Dataset) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	seeded, err := sqltable.Ensure(ctx, db, Dialect, seed)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, seeded: seeded}, nil
}

// Load reads the dataset in insertion order.
func (s *Store) Load(ctx context.Context) (penguins.Dataset, error) {
	return sqltable.Load(ctx, s.db)
}

// Seeded reports how many rows NewStore inserted.
func (s *Store) Seeded() int { return s.seeded }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
