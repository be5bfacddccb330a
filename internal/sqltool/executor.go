package sqltool

import "context"

// Executor runs a validated, read-only statement and returns its rows.
// Implementations are expected to run under a least-privilege read-only
// database role with a bounded statement timeout — Validate only confines
// the SQL text; the timeout and privilege boundary live here.
type Executor interface {
	Query(ctx context.Context, sql string, args ...any) (QueryResult, error)
}
