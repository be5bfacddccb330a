package graphstore

import (
	"regexp"
	"strings"

	"github.com/sells-group/research-cli/internal/model"
)

// Extractor extracts Entities with domain-pattern NER and Relations with
// dependency-pattern heuristics. Confidence reflects how direct the pattern
// match is, not a learned score — there is no NER model in the retrieved
// pack, so this is a deliberate, documented heuristic implementation.
type Extractor struct {
	tickerPattern   *regexp.Regexp
	moneyPattern    *regexp.Regexp
	regulationTerms []string
}

func NewExtractor() *Extractor {
	return &Extractor{
		// Matches "(NASDAQ: AAPL)", "(NYSE: BA)", or a bare "$AAPL" cashtag.
		tickerPattern: regexp.MustCompile(`\((?:NASDAQ|NYSE|AMEX)\s*:\s*([A-Z]{1,5})\)|\$([A-Z]{1,5})\b`),
		moneyPattern:  regexp.MustCompile(`\$\s?[\d,]+(?:\.\d+)?\s?(?:million|billion|thousand)?`),
		regulationTerms: []string{
			"SEC", "GAAP", "IFRS", "Dodd-Frank", "Sarbanes-Oxley", "SOX",
			"Regulation S-K", "Regulation S-X", "FASB",
		},
	}
}

// ExtractedEntity is a candidate entity before the graph store assigns it a
// stable entity id.
type ExtractedEntity struct {
	Type          model.EntityType
	CanonicalName string
	Aliases       []string
	Confidence    float64
}

// ExtractedRelation mirrors model.Relation but references candidate
// entities by CanonicalName rather than a store-assigned entity_id, since
// extraction happens before the entities are merged into the store.
type ExtractedRelation struct {
	SrcCanonicalName string
	SrcType          model.EntityType
	DstCanonicalName string
	DstType          model.EntityType
	Type             model.RelationType
	Confidence       float64
}

// Extract runs NER + relation heuristics over one chunk's enriched text.
func (e *Extractor) Extract(chunk model.Chunk, documentTicker string) ([]ExtractedEntity, []ExtractedRelation) {
	text := chunk.TextEnriched
	entities := map[string]ExtractedEntity{}
	var relations []ExtractedRelation

	docEntity := ExtractedEntity{Type: model.EntityDocument, CanonicalName: chunk.DocumentID, Confidence: 1.0}
	entities[key(docEntity.Type, docEntity.CanonicalName)] = docEntity

	for _, m := range e.tickerPattern.FindAllStringSubmatch(text, -1) {
		ticker := firstNonEmpty(m[1], m[2])
		if ticker == "" {
			continue
		}
		ent := ExtractedEntity{Type: model.EntityOrganization, CanonicalName: ticker, Confidence: 0.9}
		entities[key(ent.Type, ent.CanonicalName)] = ent
		relations = append(relations, ExtractedRelation{
			SrcCanonicalName: chunk.DocumentID, SrcType: model.EntityDocument,
			DstCanonicalName: ticker, DstType: model.EntityOrganization,
			Type: model.RelationMentions, Confidence: 0.9,
		})
	}

	if documentTicker != "" {
		for _, amount := range e.moneyPattern.FindAllString(text, -1) {
			ent := ExtractedEntity{Type: model.EntityMetric, CanonicalName: strings.TrimSpace(amount), Confidence: 0.6}
			entities[key(ent.Type, ent.CanonicalName)] = ent
			relations = append(relations, ExtractedRelation{
				SrcCanonicalName: documentTicker, SrcType: model.EntityOrganization,
				DstCanonicalName: ent.CanonicalName, DstType: model.EntityMetric,
				Type: model.RelationReported, Confidence: 0.6,
			})
		}
	}

	for _, term := range e.regulationTerms {
		if !strings.Contains(text, term) {
			continue
		}
		ent := ExtractedEntity{Type: model.EntityRegulation, CanonicalName: term, Confidence: 0.85}
		entities[key(ent.Type, ent.CanonicalName)] = ent
		if documentTicker != "" {
			relations = append(relations, ExtractedRelation{
				SrcCanonicalName: documentTicker, SrcType: model.EntityOrganization,
				DstCanonicalName: term, DstType: model.EntityRegulation,
				Type: model.RelationGovernedBy, Confidence: 0.85,
			})
		}
	}

	out := make([]ExtractedEntity, 0, len(entities))
	for _, ent := range entities {
		out = append(out, ent)
	}
	return out, relations
}

func key(t model.EntityType, name string) string { return string(t) + "|" + name }

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
