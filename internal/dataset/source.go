// Package dataset loads the immutable base dataset at startup from one of
// several sources: the bundled sample, a CSV file, a blob, or a SQL table.
package dataset

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"

	"penguinboard/internal/blob"
	"penguinboard/internal/infra/persistence/postgres"
	"penguinboard/internal/infra/persistence/sqlite"
	"penguinboard/pkg/penguins"
)

//go:embed data/penguins_sample.csv
var sampleFS embed.FS

const samplePath = "data/penguins_sample.csv"

// Source produces the base dataset.
type Source interface {
	Load(ctx context.Context) (penguins.Dataset, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (penguins.Dataset, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context) (penguins.Dataset, error) { return f(ctx) }

// SampleCSV returns the bundled sample file contents.
func SampleCSV() []byte {
	b, err := sampleFS.ReadFile(samplePath)
	if err != nil {
		panic(fmt.Sprintf("embedded sample missing: %v", err))
	}
	return b
}

// Sample parses the bundled sample. It panics if the embedded file is
// malformed, which the package tests rule out.
func Sample() penguins.Dataset {
	ds, err := ParseCSV(bytes.NewReader(SampleCSV()))
	if err != nil {
		panic(fmt.Sprintf("embedded sample invalid: %v", err))
	}
	return ds
}

// Embedded loads the bundled sample.
func Embedded() Source {
	return SourceFunc(func(context.Context) (penguins.Dataset, error) {
		return ParseCSV(bytes.NewReader(SampleCSV()))
	})
}

// File loads a CSV file from disk.
func File(path string) Source {
	return SourceFunc(func(context.Context) (penguins.Dataset, error) {
		if path == "" {
			return penguins.Dataset{}, fmt.Errorf("dataset file path required")
		}
		f, err := os.Open(path)
		if err != nil {
			return penguins.Dataset{}, fmt.Errorf("open dataset: %w", err)
		}
		defer func() { _ = f.Close() }()
		ds, err := ParseCSV(f)
		if err != nil {
			return penguins.Dataset{}, fmt.Errorf("%s: %w", path, err)
		}
		return ds, nil
	})
}

// Blob loads a CSV object from store.
func Blob(store blob.Store, key string) Source {
	return SourceFunc(func(ctx context.Context) (penguins.Dataset, error) {
		if store == nil {
			return penguins.Dataset{}, fmt.Errorf("dataset blob source requires a blob store")
		}
		if key == "" {
			return penguins.Dataset{}, fmt.Errorf("dataset blob key required")
		}
		_, rc, err := store.Get(ctx, key)
		if err != nil {
			return penguins.Dataset{}, fmt.Errorf("fetch dataset blob: %w", err)
		}
		defer func() { _ = rc.Close() }()
		ds, err := ParseCSV(rc)
		if err != nil {
			return penguins.Dataset{}, fmt.Errorf("blob %s: %w", key, err)
		}
		return ds, nil
	})
}

// SQLite loads the penguins table of a SQLite file, seeding it with seed when
// the table is empty.
func SQLite(path string, seed penguins.Dataset) Source {
	return SourceFunc(func(ctx context.Context) (penguins.Dataset, error) {
		store, err := sqlite.NewStore(ctx, path, seed)
		if err != nil {
			return penguins.Dataset{}, err
		}
		defer func() { _ = store.Close() }()
		return store.Load(ctx)
	})
}

// Postgres loads the penguins table of a Postgres database, seeding it with
// seed when the table is empty.
func Postgres(dsn string, seed penguins.Dataset) Source {
	return SourceFunc(func(ctx context.Context) (penguins.Dataset, error) {
		store, err := postgres.NewStore(ctx, dsn, seed)
		if err != nil {
			return penguins.Dataset{}, err
		}
		defer func() { _ = store.Close() }()
		return store.Load(ctx)
	})
}
