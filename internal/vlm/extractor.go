package vlm

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/model"
	"github.com/sells-group/research-cli/internal/resilience"
)

// Extractor turns a document's raw PDF bytes into per-page structured data
// via a vision-capable model: one call per page, or one batch job for all
// pages when the vision client supports batching (see ExtractDocument).
type Extractor struct {
	renderer *Renderer
	vision   VisionCaller
	retry    resilience.RetryConfig
}

func NewExtractor(vision VisionCaller, dpi int) *Extractor {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("vlm", "call_vision")
	return &Extractor{
		renderer: NewRenderer(dpi),
		vision:   vision,
		retry:    retry,
	}
}

// pageExtraction mirrors the JSON schema both prompts ask the model for.
type pageExtraction struct {
	Text             string              `json:"text"`
	Section          string              `json:"section"`
	ContentType      string              `json:"content_type"`
	Tables           []model.Table       `json:"tables"`
	FinancialMetrics *rawMetricSet       `json:"financial_metrics"`
	SegmentData      []rawSegmentRow     `json:"segment_data"`
	GeographicData   []rawGeographicRow  `json:"geographic_data"`
	RiskFactors      []model.RiskFactor  `json:"risk_factors"`
	CrossReferences  []string            `json:"cross_references"`

	Headline        string   `json:"headline"`
	PublicationDate string   `json:"publication_date"`
	Source          string   `json:"source"`
	KeyClaims       []string `json:"key_claims"`
	Entities        []string `json:"entities"`
}

type rawMetricSet struct {
	Revenue            string `json:"revenue"`
	NetIncome          string `json:"net_income"`
	GrossProfit        string `json:"gross_profit"`
	OperatingIncome    string `json:"operating_income"`
	TotalAssets        string `json:"total_assets"`
	TotalLiabilities   string `json:"total_liabilities"`
	CashAndEquivalents string `json:"cash_and_equivalents"`
	EPS                string `json:"eps"`
	Currency           string `json:"currency"`
}

type rawSegmentRow struct {
	Segment string `json:"segment"`
	Revenue string `json:"revenue"`
}

type rawGeographicRow struct {
	Region  string `json:"region"`
	Revenue string `json:"revenue"`
}

// ExtractDocument rasterizes doc's pages and extracts structured data from
// each. A page whose model call never produces parseable JSON gets a Page
// with Error set rather than aborting the rest of the document. Documents
// with more than one page go through the vision client's batch path when it
// supports one, the cheaper option the provider bills at a discount over
// one-call-per-page.
func (x *Extractor) ExtractDocument(ctx context.Context, doc model.Document, pdfBytes []byte) ([]model.Page, *model.ReferenceMetadata, error) {
	rendered, err := x.renderer.RenderPages(ctx, pdfBytes)
	if err != nil {
		return nil, nil, eris.Wrap(err, "vlm: render pages")
	}

	if batcher, ok := x.vision.(BatchVisionCaller); ok && len(rendered) > 1 {
		return x.extractDocumentBatch(ctx, doc, rendered, batcher)
	}

	pages := make([]model.Page, 0, len(rendered))
	var ref *model.ReferenceMetadata

	for _, rp := range rendered {
		page, pageRef, err := x.extractPage(ctx, doc, rp)
		if err != nil {
			pages = append(pages, model.Page{PageNumber: rp.PageNumber, Error: err.Error()})
			zap.L().Warn("vlm: page extraction failed", zap.String("document_id", doc.DocumentID), zap.Int("page", rp.PageNumber), zap.Error(err))
			continue
		}
		pages = append(pages, page)
		if pageRef != nil {
			ref = mergeReference(ref, pageRef)
		}
	}

	return pages, ref, nil
}

// extractDocumentBatch submits every rendered page as one batch job and
// finishes each returned result the same way the sequential path does
// (parse, repair-retry on malformed JSON). A page absent from the batch
// results — expired, canceled, or simply never returned — gets a Page with
// Error set, same as any other per-page failure.
func (x *Extractor) extractDocumentBatch(ctx context.Context, doc model.Document, rendered []RenderedPage, batcher BatchVisionCaller) ([]model.Page, *model.ReferenceMetadata, error) {
	items := make([]VisionBatchItem, len(rendered))
	prompts := make(map[string]string, len(rendered))
	for i, rp := range rendered {
		id := strconv.Itoa(rp.PageNumber)
		prompt := pagePrompt(doc, rp.PageNumber)
		items[i] = VisionBatchItem{CustomID: id, Prompt: prompt, ImageBase64: rp.ImageBase64, MediaType: rp.MediaType}
		prompts[id] = prompt
	}

	results, err := batcher.CallVisionBatch(ctx, items)
	if err != nil {
		return nil, nil, eris.Wrap(err, "vlm: batch vision call")
	}

	pages := make([]model.Page, 0, len(rendered))
	var ref *model.ReferenceMetadata
	for _, rp := range rendered {
		id := strconv.Itoa(rp.PageNumber)
		raw, ok := results[id]
		if !ok {
			pages = append(pages, model.Page{PageNumber: rp.PageNumber, Error: "vlm: page missing from batch results"})
			zap.L().Warn("vlm: page missing from batch results", zap.String("document_id", doc.DocumentID), zap.Int("page", rp.PageNumber))
			continue
		}

		page, pageRef, err := x.finishPage(ctx, doc, rp, prompts[id], raw)
		if err != nil {
			pages = append(pages, model.Page{PageNumber: rp.PageNumber, Error: err.Error()})
			zap.L().Warn("vlm: page extraction failed", zap.String("document_id", doc.DocumentID), zap.Int("page", rp.PageNumber), zap.Error(err))
			continue
		}
		pages = append(pages, page)
		if pageRef != nil {
			ref = mergeReference(ref, pageRef)
		}
	}

	return pages, ref, nil
}

func (x *Extractor) extractPage(ctx context.Context, doc model.Document, rp RenderedPage) (model.Page, *model.ReferenceMetadata, error) {
	prompt := pagePrompt(doc, rp.PageNumber)

	raw, err := x.callWithRetry(ctx, prompt, rp)
	if err != nil {
		return model.Page{}, nil, err
	}

	return x.finishPage(ctx, doc, rp, prompt, raw)
}

// finishPage parses raw's already-fetched model response (from either the
// sequential or batch call path), retrying once with a stricter repair
// prompt if it isn't valid JSON, and builds the Page.
func (x *Extractor) finishPage(ctx context.Context, doc model.Document, rp RenderedPage, prompt, raw string) (model.Page, *model.ReferenceMetadata, error) {
	parsed, parseErr := parsePageExtraction(raw)
	if parseErr != nil {
		repaired, callErr := x.callOnce(ctx, repairPrompt(prompt, raw, parseErr.Error()), rp)
		if callErr != nil {
			return model.Page{}, nil, eris.Wrap(callErr, "vlm: repair call failed")
		}
		parsed, parseErr = parsePageExtraction(repaired)
		if parseErr != nil {
			return model.Page{}, nil, eris.Wrap(parseErr, "vlm: malformed extraction after repair retry")
		}
	}

	if doc.DocType == model.DocTypeReference {
		return buildReferencePage(rp.PageNumber, parsed), referenceMetadata(parsed), nil
	}
	return buildFilingPage(rp.PageNumber, doc.FiscalYear, parsed), nil, nil
}

func pagePrompt(doc model.Document, pageNumber int) string {
	if doc.DocType == model.DocTypeReference {
		return ReferencePrompt(doc, pageNumber)
	}
	return FilingPrompt(doc, pageNumber)
}

func (x *Extractor) callWithRetry(ctx context.Context, prompt string, rp RenderedPage) (string, error) {
	return resilience.DoVal(ctx, x.retry, func(ctx context.Context) (string, error) {
		return x.callOnce(ctx, prompt, rp)
	})
}

func (x *Extractor) callOnce(ctx context.Context, prompt string, rp RenderedPage) (string, error) {
	resp, err := x.vision.CallVision(ctx, prompt, rp.ImageBase64, rp.MediaType)
	if err != nil {
		return "", err
	}
	return resp, nil
}

func parsePageExtraction(raw string) (pageExtraction, error) {
	var p pageExtraction
	text := extractJSONObject(raw)
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return pageExtraction{}, err
	}
	return p, nil
}

// extractJSONObject strips any prose a model wrapped around its JSON
// response, taking the substring between the first '{' and the matching
// final '}'.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func buildFilingPage(pageNumber, fiscalYear int, p pageExtraction) model.Page {
	riskFactors := make([]model.RiskFactor, len(p.RiskFactors))
	for i, rf := range p.RiskFactors {
		riskFactors[i] = model.RiskFactor{FiscalYear: fiscalYear, Title: rf.Title, Text: rf.Text}
	}

	page := model.Page{
		PageNumber:      pageNumber,
		Section:         p.Section,
		ContentType:     contentTypeOf(p.ContentType),
		Text:            p.Text,
		Tables:          p.Tables,
		CrossReferences: p.CrossReferences,
		RiskFactors:     riskFactors,
	}
	if p.FinancialMetrics != nil {
		metrics := normalizeMetricSet(*p.FinancialMetrics)
		metrics.FiscalYear = fiscalYear
		page.FinancialMetrics = metrics
	}
	for _, s := range p.SegmentData {
		page.SegmentData = append(page.SegmentData, model.SegmentRevenue{
			FiscalYear: fiscalYear,
			Segment:    s.Segment,
			Revenue:    valueOrZero(NormalizeAmount(s.Revenue)),
		})
	}
	for _, g := range p.GeographicData {
		page.GeographicData = append(page.GeographicData, model.GeographicRevenue{
			FiscalYear: fiscalYear,
			Region:     g.Region,
			Revenue:    valueOrZero(NormalizeAmount(g.Revenue)),
		})
	}
	return page
}

func buildReferencePage(pageNumber int, p pageExtraction) model.Page {
	return model.Page{
		PageNumber:  pageNumber,
		ContentType: model.ContentNarrative,
		Text:        p.Text,
	}
}

func referenceMetadata(p pageExtraction) *model.ReferenceMetadata {
	if p.Headline == "" && p.Source == "" && p.PublicationDate == "" && len(p.KeyClaims) == 0 && len(p.Entities) == 0 {
		return nil
	}
	ref := &model.ReferenceMetadata{
		Headline:  p.Headline,
		Source:    p.Source,
		KeyClaims: p.KeyClaims,
		Entities:  p.Entities,
	}
	if t, err := time.Parse("2006-01-02", p.PublicationDate); err == nil {
		ref.PublicationDate = &t
	}
	return ref
}

// mergeReference combines per-page reference metadata: the first non-empty
// headline/date/source wins, and claims/entities accumulate across pages.
func mergeReference(acc, next *model.ReferenceMetadata) *model.ReferenceMetadata {
	if acc == nil {
		return next
	}
	if acc.Headline == "" {
		acc.Headline = next.Headline
	}
	if acc.PublicationDate == nil {
		acc.PublicationDate = next.PublicationDate
	}
	if acc.Source == "" {
		acc.Source = next.Source
	}
	acc.KeyClaims = append(acc.KeyClaims, next.KeyClaims...)
	acc.Entities = append(acc.Entities, next.Entities...)
	return acc
}

func normalizeMetricSet(raw rawMetricSet) *model.MetricSet {
	return &model.MetricSet{
		Revenue:            NormalizeAmount(raw.Revenue),
		NetIncome:          NormalizeAmount(raw.NetIncome),
		GrossProfit:        NormalizeAmount(raw.GrossProfit),
		OperatingIncome:    NormalizeAmount(raw.OperatingIncome),
		TotalAssets:        NormalizeAmount(raw.TotalAssets),
		TotalLiabilities:   NormalizeAmount(raw.TotalLiabilities),
		CashAndEquivalents: NormalizeAmount(raw.CashAndEquivalents),
		EPS:                NormalizeAmount(raw.EPS),
		Currency:           raw.Currency,
	}
}

func contentTypeOf(s string) model.ContentType {
	switch model.ContentType(s) {
	case model.ContentNarrative, model.ContentTable, model.ContentMixed:
		return model.ContentType(s)
	default:
		return model.ContentNarrative
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
