//go:build integration

package sqltool

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

type pgxIface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresExecutor runs queries through a pool that should be configured
// with a read-only database role distinct from the relational store's
// writer role (internal/relstore), so a validator bypass can never reach a
// mutating statement at the database layer either.
type PostgresExecutor struct {
	pool            pgxIface
	statementTimeout time.Duration
}

func NewPostgresExecutor(ctx context.Context, readOnlyConnString string, statementTimeout time.Duration) (*PostgresExecutor, error) {
	pool, err := pgxpool.New(ctx, readOnlyConnString)
	if err != nil {
		return nil, eris.Wrap(err, "sqltool: create read-only pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "sqltool: ping")
	}
	return &PostgresExecutor{pool: pool, statementTimeout: statementTimeout}, nil
}

func (e *PostgresExecutor) Close() { e.pool.Close() }

func (e *PostgresExecutor) Query(ctx context.Context, sql string, args ...any) (QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.statementTimeout)
	defer cancel()

	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return QueryResult{}, classifyPgError(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var result QueryResult
	result.Columns = columns
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return QueryResult{}, eris.Wrap(err, "sqltool: scan row")
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, classifyPgError(err)
	}
	return result, nil
}

func classifyPgError(err error) error {
	if pgconn.Timeout(err) {
		return &TimeoutError{Cause: err}
	}
	return eris.Wrap(err, "sqltool: query")
}

// TimeoutError marks a statement that ran past its timeout, distinguishing
// "query too expensive" from a generic database error for the formatter.
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string { return "statement timeout exceeded" }
func (e *TimeoutError) Unwrap() error { return e.Cause }
