// Package verifier implements the input and output safety/quality gates
// that bracket every conversation turn: InputGate classifies an incoming
// message before the planner ever sees it, OutputGate scores a drafted
// response before it's returned to the caller.
package verifier

import (
	"context"

	"github.com/sells-group/research-cli/internal/model"
)

// Policy selects how aggressively the gates react to borderline cases.
type Policy string

const (
	PolicyStrict     Policy = "strict"
	PolicyModerate   Policy = "moderate"
	PolicyPermissive Policy = "permissive"
)

// Classifier is the narrow LLM surface both gates call through — one
// system-prompted, JSON-only completion. Satisfied by an internal/anthropic
// client wrapper; a hand-rolled stub stands in for tests.
type Classifier interface {
	Classify(ctx context.Context, systemPrompt, input string) (string, error)
}

// ChunkResolver checks whether a citation actually resolves to an indexed
// chunk. Narrow local interface over vectorindex.Store, same decoupling
// technique used throughout the retrieval packages.
type ChunkResolver interface {
	ChunkExists(ctx context.Context, documentID string, page int) (bool, error)
}

// InputClassification is the input gate's three-way verdict.
type InputClassification string

const (
	InputSafe        InputClassification = "safe"
	InputNeedsReview InputClassification = "needs_review"
	InputBlocked     InputClassification = "blocked"
)

// InputVerdict is the input gate's outcome for one message.
type InputVerdict struct {
	Classification InputClassification
	Reason         string
}

// OutputVerdict is the output gate's outcome for one drafted response.
type OutputVerdict struct {
	HallucinationRisk float64           // 0..1 estimated fraction of unsupported claims
	PIIMatches        []string          // redaction labels of any PII patterns found, e.g. "ssn"
	InvalidCitations  []model.Citation  // citations that did not resolve to a real chunk
	Blocked           bool
	Caveat            string // non-empty when the response should be annotated, not blocked
}

func thresholdsFor(p Policy) thresholds {
	switch p {
	case PolicyStrict:
		return thresholds{hallucinationBlock: 0.40, hallucinationCaveat: 0.15, blockOnInvalidCitation: true}
	case PolicyPermissive:
		return thresholds{hallucinationBlock: 0.85, hallucinationCaveat: 0.50, blockOnInvalidCitation: false}
	default:
		return thresholds{hallucinationBlock: 0.65, hallucinationCaveat: 0.30, blockOnInvalidCitation: false}
	}
}

type thresholds struct {
	hallucinationBlock     float64
	hallucinationCaveat    float64
	blockOnInvalidCitation bool
}
