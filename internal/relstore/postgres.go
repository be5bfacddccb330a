//go:build integration

package relstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-cli/internal/model"
)

type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool under the relational store's
// writer role.
type PostgresStore struct {
	pool pgxIface
}

func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "relstore: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "relstore: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return eris.Wrap(err, "relstore: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "relstore: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, c model.Company) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (ticker, name, sector, fiscal_year_end, filing_date, document_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			fiscal_year_end = EXCLUDED.fiscal_year_end,
			filing_date = EXCLUDED.filing_date,
			document_id = EXCLUDED.document_id
		RETURNING id
	`, c.Ticker, c.Name, c.Sector, c.FiscalYearEnd, c.FilingDate, c.DocumentID).Scan(&id)
	return id, eris.Wrap(err, "relstore: upsert company")
}

func (s *PostgresStore) UpsertFinancialMetrics(ctx context.Context, row model.FinancialMetricsRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO financial_metrics
			(company_id, fiscal_year, revenue, net_income, gross_profit, operating_income,
			 total_assets, total_liabilities, cash_and_equivalents, eps, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (company_id, fiscal_year) DO UPDATE SET
			revenue = EXCLUDED.revenue,
			net_income = EXCLUDED.net_income,
			gross_profit = EXCLUDED.gross_profit,
			operating_income = EXCLUDED.operating_income,
			total_assets = EXCLUDED.total_assets,
			total_liabilities = EXCLUDED.total_liabilities,
			cash_and_equivalents = EXCLUDED.cash_and_equivalents,
			eps = EXCLUDED.eps,
			currency = EXCLUDED.currency
	`, row.CompanyID, row.FiscalYear, row.Revenue, row.NetIncome, row.GrossProfit, row.OperatingIncome,
		row.TotalAssets, row.TotalLiabilities, row.CashAndEquivalents, row.EPS, row.Currency)
	return eris.Wrap(err, "relstore: upsert financial metrics")
}

func (s *PostgresStore) UpsertSegmentRevenue(ctx context.Context, rows []model.SegmentRevenueRow) error {
	for _, r := range rows {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO segment_revenue (company_id, fiscal_year, segment, revenue)
			VALUES ($1, $2, $3, $4)
		`, r.CompanyID, r.FiscalYear, r.Segment, r.Revenue)
		if err != nil {
			return eris.Wrap(err, "relstore: upsert segment revenue")
		}
	}
	return nil
}

func (s *PostgresStore) UpsertGeographicRevenue(ctx context.Context, rows []model.GeographicRevenueRow) error {
	for _, r := range rows {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO geographic_revenue (company_id, fiscal_year, region, revenue)
			VALUES ($1, $2, $3, $4)
		`, r.CompanyID, r.FiscalYear, r.Region, r.Revenue)
		if err != nil {
			return eris.Wrap(err, "relstore: upsert geographic revenue")
		}
	}
	return nil
}

func (s *PostgresStore) UpsertRiskFactors(ctx context.Context, rows []model.RiskFactorRow) error {
	for _, r := range rows {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO risk_factors (company_id, fiscal_year, title, text)
			VALUES ($1, $2, $3, $4)
		`, r.CompanyID, r.FiscalYear, r.Title, r.Text)
		if err != nil {
			return eris.Wrap(err, "relstore: upsert risk factor")
		}
	}
	return nil
}

func (s *PostgresStore) DeleteByCompany(ctx context.Context, companyID int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM segment_revenue WHERE company_id = $1;
		DELETE FROM geographic_revenue WHERE company_id = $1;
		DELETE FROM risk_factors WHERE company_id = $1;
		DELETE FROM financial_metrics WHERE company_id = $1;
	`, companyID)
	return eris.Wrap(err, "relstore: delete by company")
}
