// Package sqltable holds the penguins table layout shared by the SQL dataset
// sources: schema creation, seeding from a dataset and ordered loading.
package sqltable

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"penguinboard/pkg/penguins"
)

// Table is the name of the measurements table.
const Table = "penguins"

// columns in insert and select order; id is generated by the database.
var columns = []string{
	"species",
	"island",
	"bill_length_mm",
	"bill_depth_mm",
	"flipper_length_mm",
	"body_mass_g",
	"sex",
	"year",
}

// Dialect captures the statements that differ between SQL engines.
type Dialect struct {
	Name        string
	CreateTable string
	Placeholder func(n int) string
}

// Ensure creates the table when absent and seeds it from seed when it holds
// no rows. It returns the number of rows inserted.
func Ensure(ctx context.Context, db *sql.DB, d Dialect, seed penguins.Dataset) (int, error) {
	if _, err := db.ExecContext(ctx, d.CreateTable); err != nil {
		return 0, fmt.Errorf("create %s table: %w", Table, err)
	}
	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+Table).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", Table, err)
	}
	if count > 0 || seed.Len() == 0 {
		return 0, nil
	}
	if err := Insert(ctx, db, d, seed.Records()); err != nil {
		return 0, err
	}
	return seed.Len(), nil
}

// Insert appends records inside one transaction.
func Insert(ctx context.Context, db *sql.DB, d Dialect, records []penguins.Record) (retErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	stmt := insertStatement(d)
	for i, rec := range records {
		if _, err := tx.ExecContext(ctx, stmt, rowArgs(rec)...); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load reads every row in insertion order.
func Load(ctx context.Context, db *sql.DB) (penguins.Dataset, error) {
	query := `SELECT ` + strings.Join(columns, ", ") + ` FROM ` + Table + ` ORDER BY id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return penguins.Dataset{}, fmt.Errorf("select %s: %w", Table, err)
	}
	defer func() { _ = rows.Close() }()

	var records []penguins.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return penguins.Dataset{}, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return penguins.Dataset{}, fmt.Errorf("iterate %s: %w", Table, err)
	}
	return penguins.NewDataset(records), nil
}

func insertStatement(d Dialect) string {
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = d.Placeholder(i + 1)
	}
	return `INSERT INTO ` + Table + ` (` + strings.Join(columns, ", ") + `) VALUES (` + strings.Join(marks, ", ") + `)`
}

func rowArgs(r penguins.Record) []any {
	var sex any
	if r.Sex != penguins.SexUnknown {
		sex = string(r.Sex)
	}
	var year any
	if r.Year != 0 {
		year = int64(r.Year)
	}
	return []any{
		string(r.Species),
		r.Island,
		nullable(r.BillLengthMM),
		nullable(r.BillDepthMM),
		nullable(r.FlipperLengthMM),
		nullable(r.BodyMassG),
		sex,
		year,
	}
}

func nullable(m penguins.Measurement) any {
	if !m.Valid {
		return nil
	}
	return m.Value
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (penguins.Record, error) {
	var (
		species, island         string
		bill, depth, flip, mass sql.NullFloat64
		sex                     sql.NullString
		year                    sql.NullInt64
	)
	if err := s.Scan(&species, &island, &bill, &depth, &flip, &mass, &sex, &year); err != nil {
		return penguins.Record{}, fmt.Errorf("scan: %w", err)
	}
	sp, err := penguins.ParseSpecies(species)
	if err != nil {
		return penguins.Record{}, err
	}
	sx, err := penguins.ParseSex(sex.String)
	if err != nil {
		return penguins.Record{}, err
	}
	return penguins.Record{
		Species:         sp,
		Island:          island,
		BillLengthMM:    measurement(bill),
		BillDepthMM:     measurement(depth),
		FlipperLengthMM: measurement(flip),
		BodyMassG:       measurement(mass),
		Sex:             sx,
		Year:            int(year.Int64),
	}, nil
}

// measurement maps NULL and non-finite values (postgres NaN, Infinity) to
// missing.
func measurement(v sql.NullFloat64) penguins.Measurement {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return penguins.Missing()
	}
	return penguins.Measured(v.Float64)
}
