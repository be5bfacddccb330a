// Package sqltool answers natural-language questions over the relational
// financial-facts store: a planner LLM drafts a SELECT, a validator confines
// it to an allow-listed schema, a read-only executor runs it under a
// statement timeout, and a formatter renders the result for the agent.
package sqltool

import "context"

// Planner drafts a SQL statement for a natural-language question against a
// schema-grounded prompt. Kept narrow and local so sqltool depends on the
// behavior, not on any concrete LLM client.
type Planner interface {
	PlanQuery(ctx context.Context, question, schemaPrompt string) (string, error)
}

// Row is one result row, column name to printable value.
type Row map[string]any

// QueryResult is the executor's raw output.
type QueryResult struct {
	Columns []string
	Rows    []Row
}

// AnsweredResult is sqltool's public response: a narrative answer, a
// compact table for display, and the exact SQL that produced it, so the
// agent can surface it for transparency.
type AnsweredResult struct {
	Narrative string
	Table     QueryResult
	SQL       string
}
