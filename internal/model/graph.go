package model

// EntityType enumerates the kinds of entity the graph extractor produces
// and the graph store persists.
type EntityType string

const (
	EntityOrganization EntityType = "Organization"
	EntityPerson       EntityType = "Person"
	EntityLocation     EntityType = "Location"
	EntityRegulation   EntityType = "Regulation"
	EntityConcept      EntityType = "Concept"
	EntityProduct      EntityType = "Product"
	EntityMetric       EntityType = "Metric"
	EntityDocument     EntityType = "Document"
)

// Entity is uniquely keyed by (Type, CanonicalName); the graph store merges
// on conflict.
type Entity struct {
	EntityID      string     `json:"entity_id"`
	Type          EntityType `json:"type"`
	CanonicalName string     `json:"canonical_name"`
	Aliases       []string   `json:"aliases,omitempty"`
}

// RelationType enumerates the relation kinds the graph extractor produces.
type RelationType string

const (
	RelationMentions    RelationType = "MENTIONS"
	RelationRelatedTo   RelationType = "RELATED_TO"
	RelationGovernedBy  RelationType = "GOVERNED_BY"
	RelationReported    RelationType = "REPORTED"
)

// Relation references two existing Entities; every Relation must resolve to
// entities that exist (enforced by Store.MergeRelation).
type Relation struct {
	SrcEntityID   string       `json:"src_entity_id"`
	DstEntityID   string       `json:"dst_entity_id"`
	Type          RelationType `json:"type"`
	SourceChunkID string       `json:"source_chunk_id"`
	Confidence    float64      `json:"confidence"` // [0,1]
}

// RelatedEntity is one hit from Store.FindRelated: an entity within max_hops
// of the query entities, with the chunks that support the path.
type RelatedEntity struct {
	Entity           Entity   `json:"entity"`
	Distance         int      `json:"distance"`
	SupportingChunks []string `json:"supporting_chunks"`
}
