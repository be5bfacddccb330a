package anthropic

import "context"

const defaultClassifierModel = "claude-haiku-4-5-20251001"
const defaultClassifierMaxTokens = 1024

// ClassifierAdapter satisfies verifier.Classifier over a single-turn, no-tools
// completion call — the cheapest model is enough for a classification or
// scoring prompt.
type ClassifierAdapter struct {
	client    Client
	model     string
	maxTokens int64
}

// NewClassifierAdapter builds a ClassifierAdapter. An empty model falls back
// to the Haiku tier.
func NewClassifierAdapter(client Client, model string) *ClassifierAdapter {
	if model == "" {
		model = defaultClassifierModel
	}
	return &ClassifierAdapter{client: client, model: model, maxTokens: defaultClassifierMaxTokens}
}

// Classify sends systemPrompt + input as a single user turn and returns the
// model's text response.
func (a *ClassifierAdapter) Classify(ctx context.Context, systemPrompt, input string) (string, error) {
	resp, err := a.client.CreateMessage(ctx, MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    []SystemBlock{{Text: systemPrompt}},
		Messages:  []Message{TextMessage("user", input)},
	})
	if err != nil {
		return "", err
	}
	return resp.FirstText(), nil
}
