package anthropic

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

const defaultRAGModel = "claude-haiku-4-5-20251001"
const defaultRAGMaxTokens = 1024

// ParaphraserAdapter satisfies ragtool.Paraphraser by asking for n alternate
// phrasings back as a JSON array, same strict-JSON-prompt technique the
// discovery scorer uses.
type ParaphraserAdapter struct {
	client Client
	model  string
}

// NewParaphraserAdapter builds a ParaphraserAdapter. An empty model falls
// back to the Haiku tier.
func NewParaphraserAdapter(client Client, model string) *ParaphraserAdapter {
	if model == "" {
		model = defaultRAGModel
	}
	return &ParaphraserAdapter{client: client, model: model}
}

const paraphrasePrompt = `Generate %d alternate phrasings of the user's question that preserve its exact meaning but vary word choice and structure, to widen document search recall.

Respond with ONLY a JSON array of strings, no other text. Example: ["phrasing one", "phrasing two"]`

// Paraphrase returns up to n alternate phrasings of question.
func (a *ParaphraserAdapter) Paraphrase(ctx context.Context, question string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	resp, err := a.client.CreateMessage(ctx, MessageRequest{
		Model:     a.model,
		MaxTokens: defaultRAGMaxTokens,
		System:    []SystemBlock{{Text: sprintfPrompt(paraphrasePrompt, n)}},
		Messages:  []Message{TextMessage("user", question)},
	})
	if err != nil {
		return nil, err
	}

	var out []string
	text := strings.TrimSpace(resp.FirstText())
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, nil // fail open: no paraphrases, retrieval still runs on the original question
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// RerankerAdapter satisfies ragtool.Reranker by asking the model to score a
// single passage's relevance to a question on a 0-100 scale.
type RerankerAdapter struct {
	client Client
	model  string
}

// NewRerankerAdapter builds a RerankerAdapter. An empty model falls back to
// the Haiku tier.
func NewRerankerAdapter(client Client, model string) *RerankerAdapter {
	if model == "" {
		model = defaultRAGModel
	}
	return &RerankerAdapter{client: client, model: model}
}

const rerankSystemPrompt = `Score how relevant the passage is to answering the question, on a scale of 0 to 100.

Respond with ONLY the integer score, no other text.`

// Score rates passageText's relevance to question in [0,1].
func (a *RerankerAdapter) Score(ctx context.Context, question, passageText string) (float64, error) {
	resp, err := a.client.CreateMessage(ctx, MessageRequest{
		Model:     a.model,
		MaxTokens: 16,
		System:    []SystemBlock{{Text: rerankSystemPrompt}},
		Messages:  []Message{TextMessage("user", "Question: "+question+"\n\nPassage: "+passageText)},
	})
	if err != nil {
		return 0, err
	}

	text := strings.TrimSpace(resp.FirstText())
	score, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, nil // fail open to a neutral-low score rather than erroring the retrieval
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score / 100, nil
}

// CompressorAdapter satisfies ragtool.Compressor by asking the model to
// extract only the sentences of a passage relevant to a question.
type CompressorAdapter struct {
	client Client
	model  string
}

// NewCompressorAdapter builds a CompressorAdapter. An empty model falls back
// to the Haiku tier.
func NewCompressorAdapter(client Client, model string) *CompressorAdapter {
	if model == "" {
		model = defaultRAGModel
	}
	return &CompressorAdapter{client: client, model: model}
}

const compressSystemPrompt = `Extract only the sentences from the passage below that are directly relevant to answering the question. Preserve their original wording and order. If nothing is relevant, return the passage unchanged.

Respond with ONLY the extracted sentences, no preamble or explanation.`

// Compress returns the subset of passageText relevant to question.
func (a *CompressorAdapter) Compress(ctx context.Context, question, passageText string) (string, error) {
	resp, err := a.client.CreateMessage(ctx, MessageRequest{
		Model:     a.model,
		MaxTokens: defaultRAGMaxTokens,
		System:    []SystemBlock{{Text: compressSystemPrompt}},
		Messages:  []Message{TextMessage("user", "Question: "+question+"\n\nPassage: "+passageText)},
	})
	if err != nil {
		return passageText, err // fail open: an uncompressed passage is still usable
	}

	text := strings.TrimSpace(resp.FirstText())
	if text == "" {
		return passageText, nil
	}
	return text, nil
}

func sprintfPrompt(format string, n int) string {
	return strings.Replace(format, "%d", strconv.Itoa(n), 1)
}

// SQLPlannerAdapter satisfies sqltool.Planner over a single-turn completion
// call, asking for a bare SELECT statement and nothing else.
type SQLPlannerAdapter struct {
	client Client
	model  string
}

// NewSQLPlannerAdapter builds a SQLPlannerAdapter. An empty model falls
// back to the Haiku tier.
func NewSQLPlannerAdapter(client Client, model string) *SQLPlannerAdapter {
	if model == "" {
		model = defaultRAGModel
	}
	return &SQLPlannerAdapter{client: client, model: model}
}

// PlanQuery drafts a SELECT statement for question against schemaPrompt.
// The caller (sqltool.Answerer) validates the result before executing it;
// this adapter only asks the model for its best attempt.
func (a *SQLPlannerAdapter) PlanQuery(ctx context.Context, question, schemaPrompt string) (string, error) {
	resp, err := a.client.CreateMessage(ctx, MessageRequest{
		Model:     a.model,
		MaxTokens: defaultRAGMaxTokens,
		System:    []SystemBlock{{Text: schemaPrompt}},
		Messages:  []Message{TextMessage("user", question)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripCodeFence(resp.FirstText())), nil
}

// stripCodeFence removes a leading/trailing ``` or ```sql fence, a common
// model habit even when told not to add one.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```sql")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return text
}
