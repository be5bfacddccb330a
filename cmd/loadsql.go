//go:build integration

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/model"
	"github.com/sells-group/research-cli/internal/relstore"
)

var loadSQLDryRun bool

var loadSQLCmd = &cobra.Command{
	Use:   "load-sql",
	Short: "Load extracted filings into the relational financial-facts store",
	Long:  "Reads every extraction record under the extracted documents directory and upserts its consolidated financial facts (metrics, segment and geographic revenue, risk factors) into the relational store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := relstore.NewPostgres(ctx, cfg.Relational.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect relational store: %w", err)
		}
		defer func() { _ = store.Close() }()

		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate relational store: %w", err)
		}

		records, err := readExtractionRecords(cfg.Extract.ExtractedDir)
		if err != nil {
			return fmt.Errorf("read extraction records: %w", err)
		}

		loader := relstore.NewLoader(store)
		var failed int
		for _, rec := range records {
			ticker := rec.Document.Ticker
			if ticker == "" {
				ticker = rec.Document.DocumentID
			}
			result, err := loader.Load(ctx, ticker, rec.Document.Company, rec.Document, rec.Consolidated, relstore.LoadOptions{DryRun: loadSQLDryRun})
			if err != nil {
				failed++
				zap.L().Error("load-sql: document failed", zap.String("document_id", rec.Document.DocumentID), zap.Error(err))
				continue
			}
			for _, w := range result.Warnings {
				zap.L().Warn("load-sql: warning", zap.String("document_id", w.DocumentID), zap.String("field", w.Field), zap.String("reason", w.Reason))
			}
			fmt.Printf("loaded %s: %d rows written\n", rec.Document.DocumentID, result.RowsWritten)
		}

		fmt.Printf("%d documents loaded, %d failed\n", len(records)-failed, failed)
		if failed > 0 {
			return fmt.Errorf("load-sql: %d of %d documents failed", failed, len(records))
		}
		return nil
	},
}

// readExtractionRecords loads every *.json extraction record under dir,
// skipping the manifest and sparse-vocabulary files that live alongside
// them. Unreadable or malformed records are reported but don't stop the
// rest of the batch.
func readExtractionRecords(dir string) ([]*model.ExtractionRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		if e.Name() == cfg.Extract.ManifestName || e.Name() == "vocabulary.json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var records []*model.ExtractionRecord
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			zap.L().Warn("load-sql: skipping unreadable record", zap.String("file", name), zap.Error(err))
			continue
		}
		var rec model.ExtractionRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			zap.L().Warn("load-sql: skipping malformed record", zap.String("file", name), zap.Error(err))
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

func init() {
	loadSQLCmd.Flags().BoolVar(&loadSQLDryRun, "dry-run", false, "validate extraction records without writing to the store")
	rootCmd.AddCommand(loadSQLCmd)
}
