package verifier

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/model"
)

const hallucinationScorePrompt = `You are scoring a drafted financial research answer for hallucination risk: the fraction of its factual claims that are NOT supported by the cited source passages provided below.

Respond with ONLY valid JSON, no other text:
{"risk": 0.0, "reasoning": "brief explanation"}`

type hallucinationScoreResponse struct {
	Risk      float64 `json:"risk"`
	Reasoning string  `json:"reasoning"`
}

// piiPattern pairs a detection regex with its redaction label.
type piiPattern struct {
	label   string
	pattern *regexp.Regexp
}

var piiPatterns = []piiPattern{
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{"phone", regexp.MustCompile(`\b\(?\d{3}\)?[ .\-]?\d{3}[ .\-]?\d{4}\b`)},
}

// OutputGate scores a drafted response before it's returned to the caller.
type OutputGate struct {
	classifier Classifier
	resolver   ChunkResolver
	policy     Policy
}

// NewOutputGate builds an OutputGate. A nil classifier disables
// hallucination scoring (risk reports 0); a nil resolver disables citation
// integrity checking (every citation is treated as valid) — both are
// wiring gaps, not response-quality problems, so the gate fails open on
// either rather than blocking every turn.
func NewOutputGate(classifier Classifier, resolver ChunkResolver, policy Policy) *OutputGate {
	return &OutputGate{classifier: classifier, resolver: resolver, policy: policy}
}

// Check scores response: PII always blocks regardless of policy, citation
// integrity failures block under strict policy and caveat otherwise,
// hallucination risk is thresholded per policy.
func (g *OutputGate) Check(ctx context.Context, response string, citedText []string, citations []model.Citation) (OutputVerdict, error) {
	verdict := OutputVerdict{}

	for _, p := range piiPatterns {
		if p.pattern.MatchString(response) {
			verdict.PIIMatches = append(verdict.PIIMatches, p.label)
		}
	}
	if len(verdict.PIIMatches) > 0 {
		verdict.Blocked = true
		verdict.Caveat = "response withheld: possible personal information detected"
		return verdict, nil
	}

	if g.resolver != nil {
		for _, c := range citations {
			ok, err := g.resolver.ChunkExists(ctx, c.DocumentID, c.Page)
			if err != nil {
				zap.L().Warn("verifier: citation resolution failed, treating as unresolved",
					zap.String("document_id", c.DocumentID), zap.Int("page", c.Page), zap.Error(err))
				ok = false
			}
			if !ok {
				verdict.InvalidCitations = append(verdict.InvalidCitations, c)
			}
		}
	}

	thr := thresholdsFor(g.policy)
	if len(verdict.InvalidCitations) > 0 {
		if thr.blockOnInvalidCitation {
			verdict.Blocked = true
			verdict.Caveat = "response withheld: one or more citations could not be verified"
			return verdict, nil
		}
		verdict.Caveat = "some citations in this response could not be verified"
	}

	risk, err := g.scoreHallucinationRisk(ctx, response, citedText)
	if err != nil {
		zap.L().Warn("verifier: hallucination scoring failed, defaulting to zero risk", zap.Error(err))
		risk = 0
	}
	verdict.HallucinationRisk = risk

	switch {
	case risk >= thr.hallucinationBlock:
		verdict.Blocked = true
		verdict.Caveat = "response withheld: low confidence in factual accuracy"
	case risk >= thr.hallucinationCaveat && verdict.Caveat == "":
		verdict.Caveat = "this response may contain claims not fully supported by the cited sources"
	}

	return verdict, nil
}

func (g *OutputGate) scoreHallucinationRisk(ctx context.Context, response string, citedText []string) (float64, error) {
	if g.classifier == nil {
		return 0, nil
	}
	input := "RESPONSE:\n" + response + "\n\nCITED PASSAGES:\n" + strings.Join(citedText, "\n---\n")
	raw, err := g.classifier.Classify(ctx, hallucinationScorePrompt, input)
	if err != nil {
		return 0, err
	}
	var parsed hallucinationScoreResponse
	if jsonErr := json.Unmarshal([]byte(extractJSON(raw)), &parsed); jsonErr != nil {
		return 0, jsonErr
	}
	if parsed.Risk < 0 {
		parsed.Risk = 0
	}
	if parsed.Risk > 1 {
		parsed.Risk = 1
	}
	return parsed.Risk, nil
}
