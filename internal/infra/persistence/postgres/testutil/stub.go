// Package testutil provides a database/sql driver that emulates the penguins
// table for postgres store tests without a server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"
)

// Row is one stored penguins row. Missing keys and nil values read as NULL.
type Row struct {
	ID     int64
	Values map[string]driver.Value
}

// PenguinsConn understands the statements the penguins table layer issues:
// CREATE TABLE, SELECT COUNT(*), INSERT and the ordered SELECT.
type PenguinsConn struct {
	Statements []string
	Created    bool
	Rows       []Row

	FailPing   bool
	FailBegin  bool
	FailInsert bool
	FailCommit bool
	// RowsErr is returned after the last row of a SELECT.
	RowsErr error

	nextID int64
}

var driverSeq atomic.Int64

// NewStubDB registers a fresh driver instance and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *PenguinsConn) {
	conn := &PenguinsConn{}
	name := fmt.Sprintf("penguins-stub-%d", driverSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// AddRow stores values under the next id.
func (c *PenguinsConn) AddRow(values map[string]driver.Value) int64 {
	c.nextID++
	c.Rows = append(c.Rows, Row{ID: c.nextID, Values: values})
	return c.nextID
}

type stubDriver struct{ conn *PenguinsConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare is unsupported; statements go through ExecContext and QueryContext.
func (c *PenguinsConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

// Close implements driver.Conn.
func (c *PenguinsConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *PenguinsConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx.
func (c *PenguinsConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("begin failed")
	}
	return stubTx{conn: c, mark: len(c.Rows)}, nil
}

// Ping implements driver.Pinger.
func (c *PenguinsConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("connection refused")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *PenguinsConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Statements = append(c.Statements, query)
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE IF NOT EXISTS PENGUINS"):
		c.Created = true
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO PENGUINS"):
		if c.FailInsert {
			return nil, errors.New("insert failed")
		}
		cols, err := insertColumns(query)
		if err != nil {
			return nil, err
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("insert has %d columns and %d args", len(cols), len(args))
		}
		values := make(map[string]driver.Value, len(cols))
		for i, col := range cols {
			values[col] = args[i].Value
		}
		c.AddRow(values)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext implements driver.QueryerContext.
func (c *PenguinsConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.Statements = append(c.Statements, query)
	if !c.Created {
		return nil, errors.New(`relation "penguins" does not exist`)
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	if upper == "SELECT COUNT(*) FROM PENGUINS" {
		return &stubRows{cols: []string{"count"}, rows: [][]driver.Value{{int64(len(c.Rows))}}}, nil
	}
	if !strings.HasPrefix(upper, "SELECT ") || !strings.HasSuffix(upper, " FROM PENGUINS ORDER BY ID") {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	cols := splitColumns(query[len("SELECT "):strings.Index(upper, " FROM ")])
	ordered := slices.Clone(c.Rows)
	slices.SortFunc(ordered, func(a, b Row) int { return int(a.ID - b.ID) })
	out := make([][]driver.Value, len(ordered))
	for i, row := range ordered {
		vals := make([]driver.Value, len(cols))
		for j, col := range cols {
			vals[j] = row.Values[col]
		}
		out[i] = vals
	}
	return &stubRows{cols: cols, rows: out, err: c.RowsErr}, nil
}

// stubTx discards rows inserted since BeginTx on rollback.
type stubTx struct {
	conn *PenguinsConn
	mark int
}

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("commit failed")
	}
	return nil
}

func (t stubTx) Rollback() error {
	if len(t.conn.Rows) > t.mark {
		t.conn.Rows = t.conn.Rows[:t.mark]
	}
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func insertColumns(query string) ([]string, error) {
	open := strings.Index(query, "(")
	end := strings.Index(query, ")")
	if open < 0 || end <= open {
		return nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	return splitColumns(query[open+1 : end]), nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(p)))
	}
	return out
}
