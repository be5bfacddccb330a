package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/anthropic"
	"github.com/sells-group/research-cli/internal/docproc"
	"github.com/sells-group/research-cli/internal/vlm"
)

var extractForce bool

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract pages from every PDF in the raw documents directory",
	Long:  "Renders each PDF's pages to images and runs vision extraction over them, writing one extraction record per document and updating the manifest that tracks what's already been processed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client := anthropic.NewClient(cfg.Anthropic.Key)
		vision := anthropic.NewVisionAdapter(client, cfg.Models.VLMModelID)
		extractor := vlm.NewExtractor(vision, cfg.Extract.RenderDPI)

		manifestPath := cfg.Extract.ExtractedDir + "/" + cfg.Extract.ManifestName
		processor := docproc.NewProcessor(extractor, cfg.Extract.ExtractedDir, manifestPath)

		results, err := processor.ProcessAll(ctx, cfg.Extract.RawDir, docproc.ProcessOptions{
			Force:     extractForce,
			IfChanged: true,
		})
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}

		var failed int
		for _, r := range results {
			if r.Err != nil {
				failed++
				zap.L().Error("extract: document failed", zap.String("path", r.PDFPath), zap.Error(r.Err))
				continue
			}
			fmt.Printf("extracted %s (%d pages)\n", r.Record.Document.DocumentID, len(r.Record.Pages))
		}

		fmt.Printf("%d documents processed, %d failed\n", len(results), failed)
		if failed > 0 {
			return fmt.Errorf("extract: %d of %d documents failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "re-extract every document even if the manifest marks it up to date")
	rootCmd.AddCommand(extractCmd)
}
