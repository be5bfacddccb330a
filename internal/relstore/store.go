// Package relstore implements a relational financial-facts store and the
// loader that populates it from a consolidated extraction record.
package relstore

import (
	"context"
	_ "embed"

	"github.com/sells-group/research-cli/internal/model"
)

//go:embed schema.sql
var Schema string

// Store is the relational financial-facts persistence contract. The SQL
// tool's query executor reads the same underlying database through its own
// connection pool (see internal/sqltool), never through this interface;
// cmd opens that pool on the same relational database URL as this store,
// so it runs under whatever role that URL names. Store is the writer-side
// contract used only by the loader and by operational CLIs (migrate/load-sql).
type Store interface {
	UpsertCompany(ctx context.Context, c model.Company) (int64, error)
	UpsertFinancialMetrics(ctx context.Context, row model.FinancialMetricsRow) error
	UpsertSegmentRevenue(ctx context.Context, rows []model.SegmentRevenueRow) error
	UpsertGeographicRevenue(ctx context.Context, rows []model.GeographicRevenueRow) error
	UpsertRiskFactors(ctx context.Context, rows []model.RiskFactorRow) error
	DeleteByCompany(ctx context.Context, companyID int64) error

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
