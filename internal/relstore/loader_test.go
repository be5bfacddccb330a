package relstore

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-cli/internal/model"
)

// mockStore implements Store for testing with a hand-rolled mock, matching
// the style used in internal/discovery/mock_test.go.
type mockStore struct {
	nextCompanyID       int64
	metricsWritten      []model.FinancialMetricsRow
	segmentsWritten     [][]model.SegmentRevenueRow
	geoWritten          [][]model.GeographicRevenueRow
	risksWritten        [][]model.RiskFactorRow
	deletedCompanyIDs   []int64
	failUpsertMetrics   bool
	failUpsertSegment   bool
}

func (m *mockStore) UpsertCompany(_ context.Context, _ model.Company) (int64, error) {
	m.nextCompanyID++
	return m.nextCompanyID, nil
}
func (m *mockStore) UpsertFinancialMetrics(_ context.Context, row model.FinancialMetricsRow) error {
	if m.failUpsertMetrics {
		return eris.New("constraint violation")
	}
	m.metricsWritten = append(m.metricsWritten, row)
	return nil
}
func (m *mockStore) UpsertSegmentRevenue(_ context.Context, rows []model.SegmentRevenueRow) error {
	if m.failUpsertSegment {
		return eris.New("constraint violation")
	}
	m.segmentsWritten = append(m.segmentsWritten, rows)
	return nil
}
func (m *mockStore) UpsertGeographicRevenue(_ context.Context, rows []model.GeographicRevenueRow) error {
	m.geoWritten = append(m.geoWritten, rows)
	return nil
}
func (m *mockStore) UpsertRiskFactors(_ context.Context, rows []model.RiskFactorRow) error {
	m.risksWritten = append(m.risksWritten, rows)
	return nil
}
func (m *mockStore) DeleteByCompany(_ context.Context, companyID int64) error {
	m.deletedCompanyIDs = append(m.deletedCompanyIDs, companyID)
	return nil
}
func (m *mockStore) Ping(context.Context) error    { return nil }
func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

func revenue(v float64) *float64 { return &v }

func TestLoader_Load_WritesAllRows(t *testing.T) {
	ms := &mockStore{}
	l := NewLoader(ms)

	doc := model.Document{DocumentID: "AAPL-2024-10K"}
	view := model.ConsolidatedView{
		DocumentID: doc.DocumentID,
		FinancialMetricsByYear: map[int]model.MetricSet{
			2024: {FiscalYear: 2024, Revenue: revenue(394328), Currency: "USD"},
		},
		SegmentRevenue: []model.SegmentRevenue{
			{FiscalYear: 2024, Segment: "iPhone", Revenue: 200583},
		},
		RiskFactors: []model.RiskFactor{
			{FiscalYear: 2024, Title: "Supply chain", Text: "..."},
		},
	}

	result, err := l.Load(context.Background(), "AAPL", "Apple Inc.", doc, view, LoadOptions{})
	require.NoError(t, err)
	assert.False(t, result.RolledBack)
	assert.Equal(t, int64(1), result.CompanyID)
	assert.Equal(t, 3, result.RowsWritten) // 1 metrics + 1 segment + 1 risk
	require.Len(t, ms.metricsWritten, 1)
	assert.Equal(t, 394328.0, *ms.metricsWritten[0].Revenue)
}

func TestLoader_Load_MissingCurrencyDefaultsAndWarns(t *testing.T) {
	ms := &mockStore{}
	l := NewLoader(ms)

	doc := model.Document{DocumentID: "X-2024-10K"}
	view := model.ConsolidatedView{
		FinancialMetricsByYear: map[int]model.MetricSet{
			2024: {FiscalYear: 2024, Revenue: revenue(1000)}, // no currency
		},
	}

	result, err := l.Load(context.Background(), "X", "X Corp", doc, view, LoadOptions{})
	require.NoError(t, err)
	require.Len(t, ms.metricsWritten, 1)
	assert.Equal(t, "USD", ms.metricsWritten[0].Currency)
	assert.NotEmpty(t, result.Warnings)
}

func TestLoader_Load_ConstraintFailureRollsBackDocument(t *testing.T) {
	ms := &mockStore{failUpsertSegment: true}
	l := NewLoader(ms)

	doc := model.Document{DocumentID: "Y-2024-10K"}
	view := model.ConsolidatedView{
		FinancialMetricsByYear: map[int]model.MetricSet{2024: {FiscalYear: 2024, Revenue: revenue(1), Currency: "USD"}},
		SegmentRevenue:         []model.SegmentRevenue{{FiscalYear: 2024, Segment: "A", Revenue: 1}},
	}

	result, err := l.Load(context.Background(), "Y", "Y Corp", doc, view, LoadOptions{})
	require.Error(t, err)
	assert.True(t, result.RolledBack)
	assert.Equal(t, []int64{1}, ms.deletedCompanyIDs)
}

func TestLoader_Load_DryRunWritesNothing(t *testing.T) {
	ms := &mockStore{}
	l := NewLoader(ms)

	doc := model.Document{DocumentID: "Z-2024-10K"}
	view := model.ConsolidatedView{
		FinancialMetricsByYear: map[int]model.MetricSet{2024: {FiscalYear: 2024, Revenue: revenue(1), Currency: "USD"}},
	}

	result, err := l.Load(context.Background(), "Z", "Z Corp", doc, view, LoadOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Empty(t, ms.metricsWritten)
	assert.Equal(t, int64(0), ms.nextCompanyID)
}
