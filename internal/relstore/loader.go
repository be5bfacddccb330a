package relstore

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/model"
)

// Loader upserts one company row, then its financial_metrics/
// segment_revenue/geographic_revenue/risk_factors rows, from a
// consolidated extraction record. Missing non-key metric fields are
// inserted as null with a warning, and a missing currency defaults to USD
// with a warning. Values arrive already typed in the consolidated view, so
// the loader performs no type conversion of its own.
type Loader struct {
	store Store
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// LoadOptions controls one Load invocation.
type LoadOptions struct {
	DryRun bool // validate without writing
	Force  bool // bypass any caller-side skip heuristic (the manifest owns that, not the loader)
}

// Load upserts one company by ticker, then its per-fiscal-year rows.
// Constraint failures roll back the whole document (one company's worth of
// rows) rather than leaving partial state.
func (l *Loader) Load(ctx context.Context, ticker, name string, doc model.Document, view model.ConsolidatedView, opts LoadOptions) (*model.LoadResult, error) {
	result := &model.LoadResult{DocumentID: doc.DocumentID, DryRun: opts.DryRun}

	company := model.Company{
		Ticker:     ticker,
		Name:       name,
		DocumentID: doc.DocumentID,
	}
	if len(view.FinancialMetricsByYear) == 0 {
		result.Warnings = append(result.Warnings, model.LoadWarning{
			DocumentID: doc.DocumentID, Field: "financial_metrics", Reason: "no fiscal years present in consolidated view",
		})
	}

	if opts.DryRun {
		return validateOnly(doc, view, result), nil
	}

	companyID, err := l.store.UpsertCompany(ctx, company)
	if err != nil {
		return nil, err
	}
	result.CompanyID = companyID

	var errs error
	rowsWritten := 0

	for year, metrics := range view.FinancialMetricsByYear {
		row := toMetricsRow(companyID, year, metrics)
		if metrics.Currency == "" {
			result.Warnings = append(result.Warnings, model.LoadWarning{
				DocumentID: doc.DocumentID, FiscalYear: year, Field: "currency", Reason: "missing, defaulted to USD",
			})
		}
		for _, f := range []struct {
			name  string
			value *float64
		}{
			{"revenue", metrics.Revenue}, {"net_income", metrics.NetIncome},
			{"gross_profit", metrics.GrossProfit}, {"operating_income", metrics.OperatingIncome},
			{"total_assets", metrics.TotalAssets}, {"total_liabilities", metrics.TotalLiabilities},
			{"cash_and_equivalents", metrics.CashAndEquivalents}, {"eps", metrics.EPS},
		} {
			if f.value == nil {
				result.Warnings = append(result.Warnings, model.LoadWarning{
					DocumentID: doc.DocumentID, FiscalYear: year, Field: f.name, Reason: "missing, inserted as null",
				})
			}
		}
		if err := l.store.UpsertFinancialMetrics(ctx, row); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		rowsWritten++
	}

	if len(view.SegmentRevenue) > 0 {
		rows := make([]model.SegmentRevenueRow, len(view.SegmentRevenue))
		for i, s := range view.SegmentRevenue {
			rows[i] = model.SegmentRevenueRow{CompanyID: companyID, FiscalYear: s.FiscalYear, Segment: s.Segment, Revenue: s.Revenue}
		}
		if err := l.store.UpsertSegmentRevenue(ctx, rows); err != nil {
			errs = multierr.Append(errs, err)
		} else {
			rowsWritten += len(rows)
		}
	}

	if len(view.GeographicRevenue) > 0 {
		rows := make([]model.GeographicRevenueRow, len(view.GeographicRevenue))
		for i, g := range view.GeographicRevenue {
			rows[i] = model.GeographicRevenueRow{CompanyID: companyID, FiscalYear: g.FiscalYear, Region: g.Region, Revenue: g.Revenue}
		}
		if err := l.store.UpsertGeographicRevenue(ctx, rows); err != nil {
			errs = multierr.Append(errs, err)
		} else {
			rowsWritten += len(rows)
		}
	}

	if len(view.RiskFactors) > 0 {
		rows := make([]model.RiskFactorRow, len(view.RiskFactors))
		for i, r := range view.RiskFactors {
			rows[i] = model.RiskFactorRow{CompanyID: companyID, FiscalYear: r.FiscalYear, Title: r.Title, Text: r.Text}
		}
		if err := l.store.UpsertRiskFactors(ctx, rows); err != nil {
			errs = multierr.Append(errs, err)
		} else {
			rowsWritten += len(rows)
		}
	}

	if errs != nil {
		if rbErr := l.store.DeleteByCompany(ctx, companyID); rbErr != nil {
			errs = multierr.Append(errs, rbErr)
		}
		result.RolledBack = true
		zap.L().Error("sql loader: rolled back document after constraint failure",
			zap.String("document_id", doc.DocumentID), zap.Error(errs))
		return result, errs
	}

	result.RowsWritten = rowsWritten
	return result, nil
}

func toMetricsRow(companyID int64, year int, m model.MetricSet) model.FinancialMetricsRow {
	currency := m.Currency
	if currency == "" {
		currency = "USD"
	}
	return model.FinancialMetricsRow{
		CompanyID: companyID, FiscalYear: year,
		Revenue: m.Revenue, NetIncome: m.NetIncome, GrossProfit: m.GrossProfit,
		OperatingIncome: m.OperatingIncome, TotalAssets: m.TotalAssets,
		TotalLiabilities: m.TotalLiabilities, CashAndEquivalents: m.CashAndEquivalents,
		EPS: m.EPS, Currency: currency,
	}
}

// validateOnly checks invariants without touching the store: at most one
// MetricSet per (document_id, fiscal_year) — guaranteed by the map key type
// — and every row implicitly FK's to the document's own company.
func validateOnly(doc model.Document, view model.ConsolidatedView, result *model.LoadResult) *model.LoadResult {
	for year, m := range view.FinancialMetricsByYear {
		if m.FiscalYear != 0 && m.FiscalYear != year {
			result.Warnings = append(result.Warnings, model.LoadWarning{
				DocumentID: doc.DocumentID, FiscalYear: year, Field: "fiscal_year",
				Reason: "MetricSet.FiscalYear disagrees with its map key",
			})
		}
	}
	return result
}
