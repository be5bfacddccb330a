// Package model holds the data types shared across the retrieval, SQL, and
// agent orchestration cores: documents, chunks, entities, conversation state,
// and the relational schema's row types.
package model

import "time"

// DocType distinguishes a 10-K filing from a reference document (news,
// research, policy).
type DocType string

const (
	DocTypeFiling    DocType = "filing"
	DocTypeReference DocType = "reference"
)

// SourceType narrows where a reference document came from.
type SourceType string

const (
	SourceOfficial SourceType = "official"
	SourceNews     SourceType = "news"
	SourceResearch SourceType = "research"
	SourcePolicy   SourceType = "policy"
)

// Document identifies one source PDF and its extraction/indexing state.
type Document struct {
	DocumentID      string     `json:"document_id"`
	DocType         DocType    `json:"doc_type"`
	SourceType      SourceType `json:"source_type,omitempty"`
	Ticker          string     `json:"ticker,omitempty"`
	Company         string     `json:"company,omitempty"`
	FiscalYear      int        `json:"fiscal_year,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Source          string     `json:"source,omitempty"`
	FileHash        string     `json:"file_hash"`
	PageCount       int        `json:"page_count"`
	ExtractedAt     *time.Time `json:"extracted_at,omitempty"`
	IndexedAt       *time.Time `json:"indexed_at,omitempty"`
	ExtractionCost  float64    `json:"extraction_cost"`
	ChunkCount      int        `json:"chunk_count"`
}

// ContentType classifies a page's predominant content.
type ContentType string

const (
	ContentNarrative ContentType = "narrative"
	ContentTable     ContentType = "table"
	ContentMixed     ContentType = "mixed"
)

// Table is a single extracted table with header/row structure preserved.
type Table struct {
	Caption string     `json:"caption,omitempty"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// MetricSet holds the normalized financial_metrics fields for one fiscal year.
type MetricSet struct {
	FiscalYear         int     `json:"fiscal_year"`
	Revenue            *float64 `json:"revenue,omitempty"`
	NetIncome          *float64 `json:"net_income,omitempty"`
	GrossProfit        *float64 `json:"gross_profit,omitempty"`
	OperatingIncome    *float64 `json:"operating_income,omitempty"`
	TotalAssets        *float64 `json:"total_assets,omitempty"`
	TotalLiabilities   *float64 `json:"total_liabilities,omitempty"`
	CashAndEquivalents *float64 `json:"cash_and_equivalents,omitempty"`
	EPS                *float64 `json:"eps,omitempty"`
	Currency           string   `json:"currency,omitempty"`
}

// SegmentRevenue is one reporting segment's revenue for a fiscal year.
type SegmentRevenue struct {
	FiscalYear int     `json:"fiscal_year"`
	Segment    string  `json:"segment"`
	Revenue    float64 `json:"revenue"`
}

// GeographicRevenue is one geography's revenue for a fiscal year. Centroid
// is an optional point geometry (populated for named countries/regions) used
// only by the geo-export CLI — never required for RAG/SQL correctness.
type GeographicRevenue struct {
	FiscalYear int          `json:"fiscal_year"`
	Region     string       `json:"region"`
	Revenue    float64      `json:"revenue"`
	Centroid   *GeoPoint    `json:"centroid,omitempty"`
}

// GeoPoint is a minimal lon/lat pair; converted to a geom.Point at the
// geo-export boundary so this package stays free of the geometry dependency.
type GeoPoint struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// RiskFactor is one named risk disclosure.
type RiskFactor struct {
	FiscalYear int    `json:"fiscal_year"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

// Page is one extracted page of a Document. Immutable after extraction.
type Page struct {
	PageNumber        int                 `json:"page_number"`
	Section           string              `json:"section,omitempty"`
	ContentType       ContentType         `json:"content_type"`
	Text              string              `json:"text"`
	Tables            []Table             `json:"tables,omitempty"`
	FinancialMetrics  *MetricSet          `json:"financial_metrics,omitempty"`
	SegmentData       []SegmentRevenue    `json:"segment_data,omitempty"`
	GeographicData    []GeographicRevenue `json:"geographic_data,omitempty"`
	RiskFactors       []RiskFactor        `json:"risk_factors,omitempty"`
	CrossReferences   []string            `json:"cross_references,omitempty"`
	Error             string              `json:"error,omitempty"`
}

// ReferenceMetadata holds the fields extracted for doc_type=reference pages
// (news, research, policy) instead of financial metrics.
type ReferenceMetadata struct {
	Headline        string     `json:"headline,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Source          string     `json:"source,omitempty"`
	KeyClaims       []string   `json:"key_claims,omitempty"`
	Entities        []string   `json:"entities,omitempty"`
}

// ConsolidatedView is the per-filing derived view produced by folding a
// document's Pages together: the canonical SQL-ready form loaded into the
// relational store.
type ConsolidatedView struct {
	DocumentID             string                       `json:"document_id"`
	FinancialMetricsByYear map[int]MetricSet            `json:"financial_metrics_by_year"`
	SegmentRevenue         []SegmentRevenue             `json:"segment_revenue"`
	GeographicRevenue      []GeographicRevenue          `json:"geographic_revenue"`
	RiskFactors            []RiskFactor                 `json:"risk_factors"`
}

// ExtractionRecord is the full per-document extraction JSON persisted to
// disk: pages[] + metadata + the consolidated view.
type ExtractionRecord struct {
	Document      Document           `json:"document"`
	Pages         []Page             `json:"pages"`
	Reference     *ReferenceMetadata `json:"reference,omitempty"`
	Consolidated  ConsolidatedView   `json:"consolidated"`
}

// ManifestEntry is the authoritative skip/rework record for one Document.
type ManifestEntry struct {
	DocumentID     string     `json:"document_id"`
	FileHash       string     `json:"file_hash"`
	ExtractedAt    time.Time  `json:"extracted_at"`
	ExtractionCost float64    `json:"extraction_cost"`
	IndexedToIndex bool       `json:"indexed_to_vector_index"`
	IndexedAt      *time.Time `json:"indexed_at,omitempty"`
	ChunkCount     int        `json:"chunk_count"`
}

// Manifest maps document_id to its ManifestEntry. It is the local
// authoritative record of what has been extracted/indexed and at what cost.
type Manifest struct {
	Documents map[string]ManifestEntry `json:"documents"`
}
