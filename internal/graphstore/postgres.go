//go:build integration

package graphstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-cli/internal/model"
)

type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store over the entities/relations tables.
type PostgresStore struct {
	pool pgxIface
}

func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "graphstore: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "graphstore: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return eris.Wrap(err, "graphstore: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "graphstore: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// entityID derives a stable id from (type, canonical_name) — the natural
// key — so MergeEntity is idempotent without a round-trip lookup first.
func entityID(t model.EntityType, canonicalName string) string {
	h := sha1.Sum([]byte(string(t) + "|" + canonicalName))
	return hex.EncodeToString(h[:])
}

func (s *PostgresStore) MergeEntity(ctx context.Context, t model.EntityType, canonicalName string, aliases []string) (string, error) {
	id := entityID(t, canonicalName)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entities (entity_id, type, canonical_name, aliases)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (type, canonical_name) DO UPDATE SET
			aliases = (
				SELECT jsonb_agg(DISTINCT alias) FROM (
					SELECT jsonb_array_elements_text(entities.aliases) AS alias
					UNION
					SELECT jsonb_array_elements_text(EXCLUDED.aliases) AS alias
				) merged
			)
	`, id, string(t), canonicalName, aliases)
	return id, eris.Wrap(err, "graphstore: merge entity")
}

func (s *PostgresStore) MergeRelation(ctx context.Context, rel model.Relation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO relations (src_entity_id, dst_entity_id, type, source_chunk_id, confidence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (src_entity_id, dst_entity_id, type, source_chunk_id) DO UPDATE SET
			confidence = GREATEST(relations.confidence, EXCLUDED.confidence)
	`, rel.SrcEntityID, rel.DstEntityID, string(rel.Type), rel.SourceChunkID, rel.Confidence)
	return eris.Wrap(err, "graphstore: merge relation")
}

// FindRelated runs a recursive CTE out to maxHops (clamped to MaxHops),
// accumulating the supporting chunk ids along each discovered path.
func (s *PostgresStore) FindRelated(ctx context.Context, entityIDs []string, maxHops int) ([]model.RelatedEntity, error) {
	hops := ClampHops(maxHops)
	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE traversal(entity_id, distance, chunks) AS (
			SELECT e.entity_id, 0, ARRAY[]::text[]
			FROM entities e WHERE e.entity_id = ANY($1)
			UNION
			SELECT
				CASE WHEN r.src_entity_id = t.entity_id THEN r.dst_entity_id ELSE r.src_entity_id END,
				t.distance + 1,
				t.chunks || r.source_chunk_id
			FROM traversal t
			JOIN relations r ON r.src_entity_id = t.entity_id OR r.dst_entity_id = t.entity_id
			WHERE t.distance < $2
		)
		SELECT e.entity_id, e.type, e.canonical_name, e.aliases, MIN(t.distance) AS distance,
		       array_agg(DISTINCT c) FILTER (WHERE c IS NOT NULL) AS supporting_chunks
		FROM traversal t
		JOIN entities e ON e.entity_id = t.entity_id
		LEFT JOIN LATERAL unnest(t.chunks) AS c ON true
		WHERE t.distance > 0 AND NOT (t.entity_id = ANY($1))
		GROUP BY e.entity_id, e.type, e.canonical_name, e.aliases
		ORDER BY distance ASC
	`, entityIDs, hops)
	if err != nil {
		return nil, eris.Wrap(err, "graphstore: find related")
	}
	defer rows.Close()

	var out []model.RelatedEntity
	for rows.Next() {
		var re model.RelatedEntity
		var aliases []string
		if err := rows.Scan(&re.Entity.EntityID, &re.Entity.Type, &re.Entity.CanonicalName, &aliases,
			&re.Distance, &re.SupportingChunks); err != nil {
			return nil, eris.Wrap(err, "graphstore: scan related entity")
		}
		re.Entity.Aliases = aliases
		out = append(out, re)
	}
	return out, eris.Wrap(rows.Err(), "graphstore: iterate related entities")
}
