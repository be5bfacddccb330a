package anthropic

import (
	"context"
	"fmt"

	"github.com/sells-group/research-cli/internal/vlm"
)

const defaultVisionModel = "claude-sonnet-4-5-20250929"
const defaultVisionMaxTokens = 4096

// VisionAdapter satisfies vlm.VisionCaller over a single image-plus-prompt
// completion call.
type VisionAdapter struct {
	client    Client
	model     string
	maxTokens int64
}

// NewVisionAdapter builds a VisionAdapter. An empty model falls back to the
// Sonnet tier, the vision-capable model this module is built against.
func NewVisionAdapter(client Client, model string) *VisionAdapter {
	if model == "" {
		model = defaultVisionModel
	}
	return &VisionAdapter{client: client, model: model, maxTokens: defaultVisionMaxTokens}
}

// CallVision sends prompt plus one base64-encoded page image as a single
// user turn and returns the model's text response.
func (a *VisionAdapter) CallVision(ctx context.Context, prompt, imageBase64, mediaType string) (string, error) {
	resp, err := a.client.CreateMessage(ctx, MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []Message{{
			Role: "user",
			Blocks: []ContentBlock{
				{Type: ContentImage, ImageMediaType: mediaType, ImageBase64: imageBase64},
				{Type: ContentText, Text: prompt},
			},
		}},
	})
	if err != nil {
		return "", err
	}
	return resp.FirstText(), nil
}

// CallVisionBatch submits items as a single provider-side batch job and
// blocks until it ends, returning each succeeded page's text keyed by
// CustomID. A page whose batch item failed (errored, canceled, or expired)
// is simply absent from the result; the caller treats that the same as any
// other single-page extraction failure. Returns an error only if the
// underlying client does not support batching or the batch call itself
// fails — never for individual item failures.
func (a *VisionAdapter) CallVisionBatch(ctx context.Context, items []vlm.VisionBatchItem) (map[string]string, error) {
	batcher, ok := a.client.(batchCapable)
	if !ok {
		return nil, fmt.Errorf("anthropic: client does not support batch vision calls")
	}

	reqs := make([]BatchRequestItem, len(items))
	for i, item := range items {
		reqs[i] = BatchRequestItem{
			CustomID: item.CustomID,
			Params: MessageRequest{
				Model:     a.model,
				MaxTokens: a.maxTokens,
				Messages: []Message{{
					Role: "user",
					Blocks: []ContentBlock{
						{Type: ContentImage, ImageMediaType: item.MediaType, ImageBase64: item.ImageBase64},
						{Type: ContentText, Text: item.Prompt},
					},
				}},
			},
		}
	}

	batch, err := batcher.CreateBatch(ctx, BatchRequest{Requests: reqs})
	if err != nil {
		return nil, err
	}

	if _, err := pollBatch(ctx, batcher, batch.ID); err != nil {
		return nil, err
	}

	iter, err := batcher.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	collected, err := collectBatchResults(iter)
	if err != nil {
		return nil, err
	}

	results := make(map[string]string, len(collected.Succeeded))
	for customID, msg := range collected.Succeeded {
		results[customID] = msg.FirstText()
	}
	return results, nil
}
