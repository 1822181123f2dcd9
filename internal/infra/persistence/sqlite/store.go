// Package sqlite loads the penguins dataset from a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"penguinboard/internal/infra/persistence/sqltable"
	"penguinboard/pkg/penguins"
)

const defaultPath = "penguinboard.db"

// Dialect is the SQLite flavour of the penguins table.
var Dialect = sqltable.Dialect{
	Name: "sqlite",
	CreateTable: `CREATE TABLE IF NOT EXISTS penguins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		species TEXT NOT NULL,
		island TEXT NOT NULL DEFAULT '',
		bill_length_mm REAL,
		bill_depth_mm REAL,
		flipper_length_mm REAL,
		body_mass_g REAL,
		sex TEXT,
		year INTEGER
	)`,
	Placeholder: func(int) string { return "?" },
}

// Store reads the penguins table of a SQLite file. The table is created and
// seeded when empty.
type Store struct {
	db     *sql.DB
	path   string
	seeded int
}

// NewStore opens path (default penguinboard.db), ensuring the table exists
// and seeding it from seed when it holds no rows.
func NewStore(ctx context.Context, path string, seed penguins.Dataset) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	seeded, err := sqltable.Ensure(ctx, db, Dialect, seed)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, seeded: seeded}, nil
}

// Load reads the dataset in insertion order.
func (s *Store) Load(ctx context.Context) (penguins.Dataset, error) {
	return sqltable.Load(ctx, s.db)
}

// Seeded reports how many rows NewStore inserted.
func (s *Store) Seeded() int { return s.seeded }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
