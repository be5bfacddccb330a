// Package docproc orchestrates per-document extraction: it drives the
// vision extractor over one PDF, consolidates the result, and maintains
// the manifest that decides whether a document needs (re)extraction at all.
package docproc

import (
	"context"
	"crypto/md5" //nolint:gosec // change detection, not a security boundary
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/model"
)

// PageExtractor is the vision-extraction dependency Process drives; the
// vlm package's Extractor satisfies this directly.
type PageExtractor interface {
	ExtractDocument(ctx context.Context, doc model.Document, pdfBytes []byte) ([]model.Page, *model.ReferenceMetadata, error)
}

// Processor owns the manifest and extraction-JSON directory for one
// deployment's document corpus.
type Processor struct {
	extractor    PageExtractor
	extractedDir string
	manifestPath string
}

func NewProcessor(extractor PageExtractor, extractedDir, manifestPath string) *Processor {
	return &Processor{extractor: extractor, extractedDir: extractedDir, manifestPath: manifestPath}
}

// ProcessOptions controls one Process invocation's skip behavior.
type ProcessOptions struct {
	// Force bypasses the manifest's skip heuristic entirely.
	Force bool
	// IfChanged, when true, re-extracts only if the file's hash differs
	// from the manifest's recorded hash; when false, extracted_at alone
	// is enough to skip.
	IfChanged bool
}

// Process extracts one PDF, consolidating its pages and updating the
// manifest on success. If the manifest says this file is already
// extracted and the caller didn't ask to force or the hash is unchanged
// under IfChanged, Process returns the previously persisted record without
// calling the extractor again.
func (p *Processor) Process(ctx context.Context, pdfPath string, doc model.Document, opts ProcessOptions) (*model.ExtractionRecord, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, eris.Wrap(err, "docproc: read pdf")
	}

	documentID := DocumentID(pdfPath)
	if doc.DocumentID == "" {
		doc.DocumentID = documentID
	}
	if doc.DocType == "" {
		doc.DocType = DetectDocType(pdfPath)
	}
	fileHash := fmt.Sprintf("%x", md5.Sum(data)) //nolint:gosec

	manifest, err := loadManifest(p.manifestPath)
	if err != nil {
		return nil, err
	}

	if entry, ok := manifest.Documents[documentID]; ok && p.shouldSkip(entry, fileHash, opts) {
		recordPath := p.extractionPath(documentID)
		if cached, err := loadExtractionRecord(recordPath); err == nil {
			zap.L().Info("docproc: skipping extraction, manifest up to date", zap.String("document_id", documentID))
			return cached, nil
		}
		// Manifest claims success but the JSON is missing/corrupt: fall
		// through and re-extract rather than returning a phantom skip.
	}

	doc.FileHash = fileHash

	pages, ref, err := p.extractor.ExtractDocument(ctx, doc, data)
	if err != nil {
		return nil, eris.Wrap(err, "docproc: extract document")
	}

	doc.PageCount = len(pages)
	consolidated := Consolidate(documentID, pages)
	rec := &model.ExtractionRecord{
		Document:     doc,
		Pages:        pages,
		Reference:    ref,
		Consolidated: consolidated,
	}

	if err := saveExtractionRecord(p.extractionPath(documentID), rec); err != nil {
		return nil, err
	}

	now := time.Now()
	manifest.Documents[documentID] = model.ManifestEntry{
		DocumentID:  documentID,
		FileHash:    fileHash,
		ExtractedAt: now,
		ChunkCount:  0, // populated once the chunker/indexer run over this document
	}
	if err := saveManifest(p.manifestPath, manifest); err != nil {
		return nil, err
	}

	return rec, nil
}

func (p *Processor) shouldSkip(entry model.ManifestEntry, fileHash string, opts ProcessOptions) bool {
	if entry.ExtractedAt.IsZero() {
		return false
	}
	if opts.Force {
		return false
	}
	if opts.IfChanged && entry.FileHash != fileHash {
		return false
	}
	return true
}

func (p *Processor) extractionPath(documentID string) string {
	return filepath.Join(p.extractedDir, documentID+".json")
}

// ProcessAllResult is one file's outcome within a ProcessAll run.
type ProcessAllResult struct {
	PDFPath string
	Record  *model.ExtractionRecord
	Err     error
}

// ProcessAll walks dir for PDFs and processes each. One document's failure
// never stops the rest — its error is carried in its own result.
func (p *Processor) ProcessAll(ctx context.Context, dir string, opts ProcessOptions) ([]ProcessAllResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "docproc: list document directory")
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	results := make([]ProcessAllResult, 0, len(paths))
	for _, path := range paths {
		rec, err := p.Process(ctx, path, model.Document{}, opts)
		results = append(results, ProcessAllResult{PDFPath: path, Record: rec, Err: err})
		if err != nil {
			zap.L().Warn("docproc: document failed", zap.String("path", path), zap.Error(err))
		}
	}
	return results, nil
}

// Status summarizes the manifest's current state.
type Status struct {
	TotalDocuments   int
	ExtractedCount   int
	IndexedCount     int
	TotalExtractCost float64
}

func (p *Processor) Status() (Status, error) {
	manifest, err := loadManifest(p.manifestPath)
	if err != nil {
		return Status{}, err
	}

	var s Status
	s.TotalDocuments = len(manifest.Documents)
	for _, entry := range manifest.Documents {
		if !entry.ExtractedAt.IsZero() {
			s.ExtractedCount++
		}
		if entry.IndexedToIndex {
			s.IndexedCount++
		}
		s.TotalExtractCost += entry.ExtractionCost
	}
	return s, nil
}
