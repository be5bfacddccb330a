package docproc

import (
	"github.com/sells-group/research-cli/internal/model"
)

// Consolidate folds a document's extracted Pages into its canonical,
// SQL-ready ConsolidatedView: financial metrics merged per fiscal year
// (a null field is filled by the first page that states it; an already
// populated field is never overwritten), segment/geographic rows deduped
// on their exact tuple, and risk factors deduped by (fiscal_year, title).
func Consolidate(documentID string, pages []model.Page) model.ConsolidatedView {
	view := model.ConsolidatedView{
		DocumentID:             documentID,
		FinancialMetricsByYear: map[int]model.MetricSet{},
	}

	seenSegment := map[segmentKey]bool{}
	seenGeo := map[geoKey]bool{}
	seenRisk := map[riskKey]bool{}

	for _, page := range pages {
		if page.Error != "" {
			continue
		}

		if page.FinancialMetrics != nil {
			mergeMetrics(view.FinancialMetricsByYear, *page.FinancialMetrics)
		}

		for _, s := range page.SegmentData {
			k := segmentKey{year: s.FiscalYear, segment: s.Segment, revenue: s.Revenue}
			if seenSegment[k] {
				continue
			}
			seenSegment[k] = true
			view.SegmentRevenue = append(view.SegmentRevenue, s)
		}

		for _, g := range page.GeographicData {
			k := geoKey{year: g.FiscalYear, region: g.Region, revenue: g.Revenue}
			if seenGeo[k] {
				continue
			}
			seenGeo[k] = true
			view.GeographicRevenue = append(view.GeographicRevenue, g)
		}

		for _, r := range page.RiskFactors {
			k := riskKey{year: r.FiscalYear, title: r.Title}
			if seenRisk[k] {
				continue
			}
			seenRisk[k] = true
			view.RiskFactors = append(view.RiskFactors, r)
		}
	}

	return view
}

type segmentKey struct {
	year    int
	segment string
	revenue float64
}

type geoKey struct {
	year    int
	region  string
	revenue float64
}

type riskKey struct {
	year  int
	title string
}

// mergeMetrics folds incoming into byYear[incoming.FiscalYear], keeping
// whichever value (existing or incoming) is non-null per field and
// preferring the existing value when both are set.
func mergeMetrics(byYear map[int]model.MetricSet, incoming model.MetricSet) {
	existing, ok := byYear[incoming.FiscalYear]
	if !ok {
		byYear[incoming.FiscalYear] = incoming
		return
	}

	existing.Revenue = firstNonNil(existing.Revenue, incoming.Revenue)
	existing.NetIncome = firstNonNil(existing.NetIncome, incoming.NetIncome)
	existing.GrossProfit = firstNonNil(existing.GrossProfit, incoming.GrossProfit)
	existing.OperatingIncome = firstNonNil(existing.OperatingIncome, incoming.OperatingIncome)
	existing.TotalAssets = firstNonNil(existing.TotalAssets, incoming.TotalAssets)
	existing.TotalLiabilities = firstNonNil(existing.TotalLiabilities, incoming.TotalLiabilities)
	existing.CashAndEquivalents = firstNonNil(existing.CashAndEquivalents, incoming.CashAndEquivalents)
	existing.EPS = firstNonNil(existing.EPS, incoming.EPS)
	if existing.Currency == "" {
		existing.Currency = incoming.Currency
	}
	byYear[incoming.FiscalYear] = existing
}

func firstNonNil(existing, incoming *float64) *float64 {
	if existing != nil {
		return existing
	}
	return incoming
}
