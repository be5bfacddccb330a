//go:build integration

package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
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

const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vector_chunks (
	id         UUID PRIMARY KEY,
	chunk_id   TEXT NOT NULL UNIQUE,
	dense      vector(%d) NOT NULL,
	sparse     JSONB NOT NULL DEFAULT '{"indices":[],"values":[]}',
	metadata   JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vector_chunks_document ON vector_chunks ((metadata->>'document_id'));
CREATE INDEX IF NOT EXISTS idx_vector_chunks_ticker ON vector_chunks ((metadata->>'ticker'));
`

// PostgresStore implements Store over a pgvector-backed table. The dense
// dimension is a deployment constant; Upsert rejects a record whose dense
// length differs from it before issuing any insert, so indexing fails fast
// (the pgvector column type would reject such a vector as well).
type PostgresStore struct {
	pool      pgxIface
	dimension int
}

func NewPostgres(ctx context.Context, connString string, dimension int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "vectorindex: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "vectorindex: ping")
	}
	return &PostgresStore{pool: pool, dimension: dimension}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(schemaTemplate, s.dimension))
	return eris.Wrap(err, "vectorindex: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "vectorindex: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, vectors []model.VectorRecord) error {
	if len(vectors) > MaxUpsertBatch {
		return eris.Errorf("vectorindex: upsert batch of %d exceeds max %d", len(vectors), MaxUpsertBatch)
	}
	for _, v := range vectors {
		if len(v.Dense) != s.dimension {
			return eris.Errorf("vectorindex: dense dimension mismatch for %s: expected %d got %d", v.ChunkID, s.dimension, len(v.Dense))
		}
		sparse, err := json.Marshal(v.Sparse)
		if err != nil {
			return eris.Wrap(err, "vectorindex: marshal sparse")
		}
		metadata, err := json.Marshal(v.Metadata)
		if err != nil {
			return eris.Wrap(err, "vectorindex: marshal metadata")
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO vector_chunks (id, chunk_id, dense, sparse, metadata)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (chunk_id) DO UPDATE SET dense = EXCLUDED.dense, sparse = EXCLUDED.sparse, metadata = EXCLUDED.metadata
		`, uuid.New(), v.ChunkID, pgvector.NewVector(v.Dense), sparse, metadata)
		if err != nil {
			return eris.Wrapf(err, "vectorindex: upsert %s", v.ChunkID)
		}
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, filter model.VectorFilter) error {
	where, args := filterClause(filter, 1)
	_, err := s.pool.Exec(ctx, "DELETE FROM vector_chunks WHERE "+where, args...)
	return eris.Wrap(err, "vectorindex: delete")
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM vector_chunks").Scan(&count)
	if err != nil {
		return Stats{}, eris.Wrap(err, "vectorindex: stats")
	}
	return Stats{VectorCount: count, Dimension: s.dimension}, nil
}

// Query runs one metadata-filtered dense ANN query. If a sparse vector is
// supplied, that query fetches 4×topK candidates, each is re-scored by
// fusing its dense score with its sparse dot product (see fuseScores), and
// the best topK are kept — pgvector has no sparse-vector operator, so
// sparse scoring happens in application code. Rows outside the dense
// candidate pool are not scored on sparse terms.
func (s *PostgresStore) Query(ctx context.Context, dense []float32, sparse *model.SparseVector, topK int, filter model.VectorFilter) ([]model.ScoredChunk, error) {
	if len(dense) != s.dimension {
		return nil, eris.Errorf("vectorindex: query dense dimension mismatch: expected %d got %d", s.dimension, len(dense))
	}
	where, filterArgs := filterClause(filter, 2)
	denseLimit := topK
	if sparse != nil {
		denseLimit = topK * 4
	}
	denseArgs := append([]any{pgvector.NewVector(dense)}, filterArgs...)
	denseArgs = append(denseArgs, denseLimit)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT chunk_id, metadata, sparse, 1 - (dense <=> $1) AS score
		FROM vector_chunks
		WHERE %s
		ORDER BY dense <=> $1
		LIMIT $%d
	`, where, len(denseArgs)), denseArgs...)
	if err != nil {
		return nil, eris.Wrap(err, "vectorindex: query dense")
	}
	defer rows.Close()

	type candidate struct {
		chunk      model.ScoredChunk
		sparseVec  model.SparseVector
		denseScore float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var metadataRaw, sparseRaw []byte
		if err := rows.Scan(&c.chunk.ChunkID, &metadataRaw, &sparseRaw, &c.denseScore); err != nil {
			return nil, eris.Wrap(err, "vectorindex: scan")
		}
		if err := json.Unmarshal(metadataRaw, &c.chunk.Metadata); err != nil {
			return nil, eris.Wrap(err, "vectorindex: unmarshal metadata")
		}
		if err := json.Unmarshal(sparseRaw, &c.sparseVec); err != nil {
			return nil, eris.Wrap(err, "vectorindex: unmarshal sparse")
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "vectorindex: iterate")
	}

	if sparse == nil {
		out := make([]model.ScoredChunk, 0, len(candidates))
		for _, c := range candidates {
			c.chunk.Score = c.denseScore
			out = append(out, c.chunk)
		}
		return out, nil
	}

	scored := make([]model.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		sparseScore := sparseDot(*sparse, c.sparseVec)
		c.chunk.Score = fuseScores(c.denseScore, sparseScore)
		scored = append(scored, c.chunk)
	}
	sortByScoreDesc(scored)
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// ChunkExists reports whether documentID has an indexed chunk spanning
// page, satisfying verifier.ChunkResolver so the output gate can confirm a
// citation actually resolves to something in the index before trusting it.
func (s *PostgresStore) ChunkExists(ctx context.Context, documentID string, page int) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vector_chunks
			WHERE metadata->>'document_id' = $1
			AND (metadata->>'start_page')::int <= $2
			AND (metadata->>'end_page')::int >= $2
		)
	`, documentID, page).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "vectorindex: chunk exists")
	}
	return exists, nil
}

// filterClause builds a WHERE clause over VectorFilter's non-zero fields,
// numbering placeholders starting at startIndex so callers can reserve
// earlier positional args (e.g. $1 for a query vector).
func filterClause(f model.VectorFilter, startIndex int) (string, []any) {
	clauses := []string{"TRUE"}
	var args []any
	add := func(expr string) {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", expr, startIndex+len(args)))
	}
	if f.DocumentID != "" {
		add("metadata->>'document_id'")
		args = append(args, f.DocumentID)
	}
	if f.Ticker != "" {
		add("metadata->>'ticker'")
		args = append(args, f.Ticker)
	}
	if f.DocType != "" {
		add("metadata->>'doc_type'")
		args = append(args, string(f.DocType))
	}
	if f.SourceType != "" {
		add("metadata->>'source_type'")
		args = append(args, string(f.SourceType))
	}
	if f.FiscalYear != 0 {
		clauses = append(clauses, fmt.Sprintf("(metadata->>'fiscal_year')::int = $%d", startIndex+len(args)))
		args = append(args, f.FiscalYear)
	}
	where := clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}
