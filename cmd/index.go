//go:build integration

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/chunker"
	"github.com/sells-group/research-cli/internal/embedding"
	"github.com/sells-group/research-cli/internal/graphstore"
	"github.com/sells-group/research-cli/internal/model"
	"github.com/sells-group/research-cli/internal/vectorindex"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Chunk, embed, and index every extracted document",
	Long:  "Chunks each extraction record's pages, embeds the chunks into the vector index, and extracts entities/relations into the graph store. Also rebuilds the sparse term vocabulary over the full corpus so it stays consistent with what was just indexed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		records, err := readExtractionRecords(cfg.Extract.ExtractedDir)
		if err != nil {
			return fmt.Errorf("read extraction records: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("no extraction records found, nothing to index")
			return nil
		}

		vectorStore, err := vectorindex.NewPostgres(ctx, cfg.VectorIndex.DatabaseURL, cfg.VectorIndex.DenseDim)
		if err != nil {
			return fmt.Errorf("connect vector index: %w", err)
		}
		defer func() { _ = vectorStore.Close() }()
		if err := vectorStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate vector index: %w", err)
		}

		graphStore, err := graphstore.NewPostgres(ctx, cfg.Graph.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect graph store: %w", err)
		}
		defer func() { _ = graphStore.Close() }()
		if err := graphStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate graph store: %w", err)
		}

		embedClient := embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Key, cfg.Models.EmbedModelID, cfg.VectorIndex.DenseDim)
		chunk := chunker.New(cfg.Chunker.MaxTokens, cfg.Chunker.Overlap)
		graphExtractor := graphstore.NewExtractor()

		allChunks := make(map[string][]model.Chunk, len(records))
		var corpusTexts []string
		for _, rec := range records {
			chunks := chunk.Chunk(rec.Document, rec.Pages)
			allChunks[rec.Document.DocumentID] = chunks
			for _, c := range chunks {
				corpusTexts = append(corpusTexts, c.TextEnriched)
			}
		}

		vocab := embedding.BuildVocabulary(corpusTexts)
		sparseEncoder := embedding.NewEncoder(vocab)
		if err := persistVocabulary(vocab); err != nil {
			zap.L().Warn("index: failed to persist vocabulary", zap.Error(err))
		}

		for _, rec := range records {
			chunks := allChunks[rec.Document.DocumentID]
			if len(chunks) == 0 {
				continue
			}

			texts := make([]string, len(chunks))
			for i, c := range chunks {
				texts[i] = c.TextEnriched
			}
			dense, err := embedClient.EmbedBatch(ctx, texts)
			if err != nil {
				zap.L().Error("index: embed batch failed", zap.String("document_id", rec.Document.DocumentID), zap.Error(err))
				continue
			}

			vectors := make([]model.VectorRecord, len(chunks))
			for i, c := range chunks {
				vectors[i] = model.VectorRecord{
					ChunkID: c.ChunkID,
					Dense:   dense[i],
					Sparse:  sparseEncoder.Encode(c.TextEnriched),
					Metadata: model.VectorMetadata{
						DocumentID: c.DocumentID,
						ChunkIndex: c.ChunkIndex,
						Ticker:     rec.Document.Ticker,
						Company:    rec.Document.Company,
						DocType:    rec.Document.DocType,
						SourceType: rec.Document.SourceType,
						FiscalYear: rec.Document.FiscalYear,
						Section:    c.Section,
						StartPage:  c.StartPage,
						EndPage:    c.EndPage,
					},
				}
			}

			if err := vectorindex.ReindexDocument(ctx, vectorStore, rec.Document.DocumentID, vectors); err != nil {
				zap.L().Error("index: reindex failed", zap.String("document_id", rec.Document.DocumentID), zap.Error(err))
				continue
			}

			if err := indexGraph(ctx, graphStore, graphExtractor, chunks, rec.Document.Ticker); err != nil {
				zap.L().Error("index: graph extraction failed", zap.String("document_id", rec.Document.DocumentID), zap.Error(err))
			}

			fmt.Printf("indexed %s: %d chunks\n", rec.Document.DocumentID, len(chunks))
		}

		return nil
	},
}

// indexGraph merges every chunk's extracted entities and relations into
// the graph store, resolving each extracted relation's candidate entity
// names to store-assigned ids via MergeEntity's idempotent upsert.
func indexGraph(ctx context.Context, graphStore *graphstore.PostgresStore, extractor *graphstore.Extractor, chunks []model.Chunk, ticker string) error {
	for _, c := range chunks {
		entities, relations := extractor.Extract(c, ticker)

		entityIDs := make(map[string]string, len(entities))
		for _, e := range entities {
			id, err := graphStore.MergeEntity(ctx, e.Type, e.CanonicalName, e.Aliases)
			if err != nil {
				return err
			}
			entityIDs[string(e.Type)+"|"+e.CanonicalName] = id
		}

		for _, r := range relations {
			srcID, ok := entityIDs[string(r.SrcType)+"|"+r.SrcCanonicalName]
			if !ok {
				continue
			}
			dstID, ok := entityIDs[string(r.DstType)+"|"+r.DstCanonicalName]
			if !ok {
				continue
			}
			if err := graphStore.MergeRelation(ctx, model.Relation{
				SrcEntityID:   srcID,
				DstEntityID:   dstID,
				Type:          r.Type,
				SourceChunkID: c.ChunkID,
				Confidence:    r.Confidence,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// persistVocabulary writes the corpus vocabulary alongside the extracted
// documents so bootstrap.go's query-time sparse encoder loads the same
// term statistics this run just built.
func persistVocabulary(vocab *embedding.Vocabulary) error {
	b, err := vocab.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(vocabularyPath(), b, 0o644)
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
