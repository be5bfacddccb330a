// Package graphstore implements an entity/relation graph over two
// Postgres tables with a recursive CTE for k-hop traversal — no graph
// database client exists anywhere in the available example pack, so this
// rides the same pgx connection the relational and vector stores already
// use rather than introducing an unbuildable dependency.
package graphstore

import (
	"context"

	"github.com/sells-group/research-cli/internal/model"
)

const Schema = `
CREATE TABLE IF NOT EXISTS entities (
	entity_id      TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	aliases        JSONB NOT NULL DEFAULT '[]',
	UNIQUE (type, canonical_name)
);

CREATE TABLE IF NOT EXISTS relations (
	src_entity_id   TEXT NOT NULL REFERENCES entities(entity_id),
	dst_entity_id   TEXT NOT NULL REFERENCES entities(entity_id),
	type            TEXT NOT NULL,
	source_chunk_id TEXT NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (src_entity_id, dst_entity_id, type, source_chunk_id)
);

CREATE INDEX IF NOT EXISTS idx_relations_src ON relations(src_entity_id);
CREATE INDEX IF NOT EXISTS idx_relations_dst ON relations(dst_entity_id);
`

// Store is the graph store's contract: idempotent entity/relation merge
// plus bounded k-hop traversal.
type Store interface {
	MergeEntity(ctx context.Context, t model.EntityType, canonicalName string, aliases []string) (string, error)
	MergeRelation(ctx context.Context, rel model.Relation) error
	FindRelated(ctx context.Context, entityIDs []string, maxHops int) ([]model.RelatedEntity, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// MaxHops is the traversal ceiling.
const MaxHops = 2

// ClampHops enforces the ceiling without erroring — callers asking for
// more hops than allowed silently get the maximum rather than an error,
// the same fails-open posture the retrieval pipeline uses between stages.
func ClampHops(requested int) int {
	if requested <= 0 {
		return 1
	}
	if requested > MaxHops {
		return MaxHops
	}
	return requested
}
