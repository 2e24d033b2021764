package core

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"
)

// Row is a single result row normalized into JSON-compatible values.
// See value.go for the decoding rules.
type Row = map[string]any

// Runner is the database surface the executor, the write handlers and
// the ETL pipeline run against. *DB implements it; tests substitute
// fakes.
type Runner interface {
	QueryOne(ctx context.Context, query string, args ...any) (Row, error)
	QueryList(ctx context.Context, query string, args ...any) ([]Row, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Count(ctx context.Context, query string, args ...any) (int64, error)
	CreateTable(ctx context.Context, query string) error
}

// DB wraps the pooled connection and normalizes result rows.
type DB struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewDB wraps an opened *sql.DB. Pool sizing is the caller's concern.
func NewDB(db *sql.DB, log *zap.SugaredLogger) *DB {
	return &DB{db: db, log: log}
}

// SQLDB exposes the underlying pool for health checks.
func (d *DB) SQLDB() *sql.DB { return d.db }

// QueryOne fetches a single row. A LIMIT clause is appended when the
// statement carries none so a stray full scan cannot happen.
func (d *DB) QueryOne(ctx context.Context, query string, args ...any) (Row, error) {
	if !strings.Contains(strings.ToLower(query), "limit") {
		query += " LIMIT 1"
	}
	rows, err := d.QueryList(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// QueryList fetches all rows of the query, decoded per value.go.
func (d *DB) QueryList(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &SQLError{Query: query, Err: err}
	}
	defer rows.Close() //nolint:errcheck

	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, &SQLError{Query: query, Err: err}
	}

	var out []Row
	raw := make([]sql.RawBytes, len(cts))
	dest := make([]any, len(cts))
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, &SQLError{Query: query, Err: err}
		}
		rec := make(Row, len(cts))
		for i, ct := range cts {
			rec[ct.Name()] = decodeValue(ct.DatabaseTypeName(), raw[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &SQLError{Query: query, Err: err}
	}
	return out, nil
}

// Exec runs a statement and returns the affected row count.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &SQLError{Query: query, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &SQLError{Query: query, Err: err}
	}
	return n, nil
}

// Count runs a scalar count query.
func (d *DB) Count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &SQLError{Query: query, Err: err}
	}
	return n, nil
}

// CreateTable runs a DDL statement.
func (d *DB) CreateTable(ctx context.Context, query string) error {
	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return &SQLError{Query: query, Err: err}
	}
	return nil
}
