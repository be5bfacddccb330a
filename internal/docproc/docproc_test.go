package docproc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-cli/internal/model"
)

// stubExtractor implements PageExtractor for testing with a hand-rolled
// mock, matching the style used in internal/discovery/mock_test.go.
type stubExtractor struct {
	pages []model.Page
	ref   *model.ReferenceMetadata
	err   error
	calls int
}

func (s *stubExtractor) ExtractDocument(_ context.Context, _ model.Document, _ []byte) ([]model.Page, *model.ReferenceMetadata, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.pages, s.ref, nil
}

func writeTempPDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stand-in bytes"), 0o644))
	return path
}

func samplePages() []model.Page {
	revenue := 391.0
	return []model.Page{
		{
			PageNumber:  1,
			ContentType: model.ContentTable,
			Text:        "financial highlights",
			FinancialMetrics: &model.MetricSet{
				FiscalYear: 2024,
				Revenue:    &revenue,
			},
		},
	}
}

func TestProcess_ExtractsAndPersistsNewDocument(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeTempPDF(t, dir, "AAPL-10K-2024.pdf")
	extractor := &stubExtractor{pages: samplePages()}
	proc := NewProcessor(extractor, filepath.Join(dir, "extracted"), filepath.Join(dir, "manifest.json"))

	rec, err := proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, model.DocTypeFiling, rec.Document.DocType)
	assert.Equal(t, "AAPL-10K-2024", rec.Document.DocumentID)
	assert.Len(t, rec.Pages, 1)
	require.Contains(t, rec.Consolidated.FinancialMetricsByYear, 2024)
	assert.Equal(t, 391.0, *rec.Consolidated.FinancialMetricsByYear[2024].Revenue)

	manifest, err := loadManifest(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	entry, ok := manifest.Documents["AAPL-10K-2024"]
	require.True(t, ok)
	assert.NotEmpty(t, entry.FileHash)
	assert.False(t, entry.ExtractedAt.IsZero())
}

func TestProcess_SkipsUnchangedDocumentOnSecondRun(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeTempPDF(t, dir, "AAPL-10K-2024.pdf")
	extractor := &stubExtractor{pages: samplePages()}
	proc := NewProcessor(extractor, filepath.Join(dir, "extracted"), filepath.Join(dir, "manifest.json"))

	_, err := proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{IfChanged: true})
	require.NoError(t, err)

	_, err = proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{IfChanged: true})
	require.NoError(t, err)

	assert.Equal(t, 1, extractor.calls, "second run should skip extraction since the hash is unchanged")
}

func TestProcess_ForceBypassesSkip(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeTempPDF(t, dir, "AAPL-10K-2024.pdf")
	extractor := &stubExtractor{pages: samplePages()}
	proc := NewProcessor(extractor, filepath.Join(dir, "extracted"), filepath.Join(dir, "manifest.json"))

	_, err := proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{})
	require.NoError(t, err)

	_, err = proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 2, extractor.calls)
}

func TestProcess_ReextractsWhenHashChangesUnderIfChanged(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeTempPDF(t, dir, "AAPL-10K-2024.pdf")
	extractor := &stubExtractor{pages: samplePages()}
	proc := NewProcessor(extractor, filepath.Join(dir, "extracted"), filepath.Join(dir, "manifest.json"))

	_, err := proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{IfChanged: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 changed bytes, different hash now"), 0o644))

	_, err = proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{IfChanged: true})
	require.NoError(t, err)

	assert.Equal(t, 2, extractor.calls)
}

func TestProcess_WithoutIfChangedSkipsOnExtractedAtAlone(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeTempPDF(t, dir, "AAPL-10K-2024.pdf")
	extractor := &stubExtractor{pages: samplePages()}
	proc := NewProcessor(extractor, filepath.Join(dir, "extracted"), filepath.Join(dir, "manifest.json"))

	_, err := proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 changed bytes, different hash now"), 0o644))

	_, err = proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, extractor.calls, "extracted_at alone is enough to skip when IfChanged is false")
}

func TestProcessAll_ContinuesPastOneDocumentFailure(t *testing.T) {
	dir := t.TempDir()
	writeTempPDF(t, dir, "AAPL-10K-2024.pdf")
	writeTempPDF(t, dir, "MSFT-10K-2024.pdf")
	writeTempPDF(t, dir, "not-a-pdf.txt")

	calls := 0
	extractor := &callCountingExtractor{
		fn: func(doc model.Document) ([]model.Page, *model.ReferenceMetadata, error) {
			calls++
			if doc.DocumentID == "AAPL-10K-2024" {
				return nil, nil, assertErr{}
			}
			return samplePages(), nil, nil
		},
	}
	proc := NewProcessor(extractor, filepath.Join(dir, "extracted"), filepath.Join(dir, "manifest.json"))

	results, err := proc.ProcessAll(context.Background(), dir, ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2, "only the two pdf files are considered")

	var sawFailure, sawSuccess bool
	for _, r := range results {
		if r.Err != nil {
			sawFailure = true
		} else {
			sawSuccess = true
			require.NotNil(t, r.Record)
		}
	}
	assert.True(t, sawFailure)
	assert.True(t, sawSuccess)
}

type callCountingExtractor struct {
	fn func(doc model.Document) ([]model.Page, *model.ReferenceMetadata, error)
}

func (c *callCountingExtractor) ExtractDocument(_ context.Context, doc model.Document, _ []byte) ([]model.Page, *model.ReferenceMetadata, error) {
	return c.fn(doc)
}

type assertErr struct{}

func (assertErr) Error() string { return "extraction failed" }

func TestStatus_SummarizesManifest(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeTempPDF(t, dir, "AAPL-10K-2024.pdf")
	extractor := &stubExtractor{pages: samplePages()}
	proc := NewProcessor(extractor, filepath.Join(dir, "extracted"), filepath.Join(dir, "manifest.json"))

	_, err := proc.Process(context.Background(), pdfPath, model.Document{}, ProcessOptions{})
	require.NoError(t, err)

	status, err := proc.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalDocuments)
	assert.Equal(t, 1, status.ExtractedCount)
	assert.Equal(t, 0, status.IndexedCount)
}

func TestDetectDocType(t *testing.T) {
	assert.Equal(t, model.DocTypeFiling, DetectDocType("AAPL-10K-2024.pdf"))
	assert.Equal(t, model.DocTypeFiling, DetectDocType("msft_10_k.pdf"))
	assert.Equal(t, model.DocTypeReference, DetectDocType("fed-rate-announcement.pdf"))
}

func TestParseDocumentIdentity(t *testing.T) {
	ticker, year := ParseDocumentIdentity("AAPL-10K-2024.pdf")
	assert.Equal(t, "AAPL", ticker)
	assert.Equal(t, 2024, year)

	ticker, year = ParseDocumentIdentity("fed-rate-announcement.pdf")
	assert.Equal(t, "", ticker)
	assert.Equal(t, 0, year)
}
