package vlm

import "context"

// VisionCaller is the narrow dependency this package needs from a
// multimodal LLM client: send one prompt plus one base64-encoded image and
// get back the model's text response. Defined here rather than depending
// on a concrete client type so any implementation (a real client, a test
// double) can drive extraction.
type VisionCaller interface {
	CallVision(ctx context.Context, prompt, imageBase64, mediaType string) (string, error)
}

// VisionBatchItem is one rendered page queued for batched vision
// extraction, keyed by CustomID so results can be matched back to the page
// that requested them.
type VisionBatchItem struct {
	CustomID    string
	Prompt      string
	ImageBase64 string
	MediaType   string
}

// BatchVisionCaller is satisfied by a VisionCaller that can also submit many
// pages as a single provider-side batch job. ExtractDocument takes this path
// whenever a document has more than one page and the configured vision
// client supports it, trading latency for the lower per-token batch price.
// Missing or failed items are simply absent from the returned map; the
// caller treats that the same as any other single-page extraction failure.
type BatchVisionCaller interface {
	CallVisionBatch(ctx context.Context, items []VisionBatchItem) (map[string]string, error)
}
