//go:build integration

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-cli/internal/model"
	"github.com/sells-group/research-cli/internal/resilience"
)

// pgxIface is satisfied by both *pgxpool.Pool and pgxmock's mock pool,
// letting PostgresStore be unit-tested without a live database.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool. Backs checkpoint.driver
// "postgres" (the default) for checkpoints, the response cache, and the
// dead-letter queue.
type PostgresStore struct {
	pool pgxIface
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS checkpoints (
	conversation_id TEXT PRIMARY KEY,
	checkpoint_id   TEXT NOT NULL,
	state           JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS response_cache (
	id                 TEXT PRIMARY KEY,
	query_embedding    JSONB NOT NULL,
	canonical_query    TEXT NOT NULL,
	response           TEXT NOT NULL,
	tool_trace_summary TEXT NOT NULL,
	cited_document_ids JSONB NOT NULL,
	ttl_epoch          BIGINT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_response_cache_ttl ON response_cache(ttl_epoch);

CREATE TABLE IF NOT EXISTS dlq (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL,
	phase          TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INT NOT NULL DEFAULT 0,
	max_retries    INT NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dlq(error_type);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveCheckpoint(ctx context.Context, state model.ConversationState) (*model.Checkpoint, error) {
	cp := &model.Checkpoint{
		CheckpointID:   uuid.New().String(),
		ConversationID: state.ConversationID,
		State:          state,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (conversation_id, checkpoint_id, state, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id) DO UPDATE SET
			checkpoint_id = EXCLUDED.checkpoint_id,
			state = EXCLUDED.state,
			created_at = EXCLUDED.created_at
	`, state.ConversationID, cp.CheckpointID, state, cp.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: save checkpoint")
	}
	return cp, nil
}

func (s *PostgresStore) LoadCheckpoint(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	var state model.ConversationState
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM checkpoints WHERE conversation_id = $1`, conversationID,
	).Scan(&state)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load checkpoint")
	}
	return &state, nil
}

func (s *PostgresStore) DeleteCheckpoint(ctx context.Context, conversationID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM checkpoints WHERE conversation_id = $1`, conversationID)
	return eris.Wrap(err, "postgres: delete checkpoint")
}

func (s *PostgresStore) StoreCache(ctx context.Context, entry model.CacheEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO response_cache
			(id, query_embedding, canonical_query, response, tool_trace_summary, cited_document_ids, ttl_epoch, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.QueryEmbedding, entry.CanonicalQuery, entry.Response,
		entry.ToolTraceSummary, entry.CitedDocumentIDs, entry.TTLEpoch, entry.CreatedAt)
	return eris.Wrap(err, "postgres: store cache entry")
}

// LookupCache scans non-expired rows and ranks them by cosine similarity in
// Go rather than via a pgvector `<=>` operator: the response cache's
// embedding column is plain JSONB here (internal/vectorindex owns the only
// pgvector column), since the cache's working set is small enough that a
// full scan per turn is cheaper than maintaining a second ANN index for it.
func (s *PostgresStore) LookupCache(ctx context.Context, queryEmbedding []float32, filter CacheFilter) (*model.CacheEntry, error) {
	minSim := filter.MinSimilarity
	if minSim <= 0 {
		minSim = 0.95
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, query_embedding, canonical_query, response, tool_trace_summary, cited_document_ids, ttl_epoch, created_at
		FROM response_cache WHERE ttl_epoch > $1
	`, time.Now().Unix())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query cache entries")
	}
	defer rows.Close()

	var best *model.CacheEntry
	bestSim := 0.0
	for rows.Next() {
		var e model.CacheEntry
		if err := rows.Scan(&e.ID, &e.QueryEmbedding, &e.CanonicalQuery, &e.Response,
			&e.ToolTraceSummary, &e.CitedDocumentIDs, &e.TTLEpoch, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cache row")
		}
		sim := cosineSimilarity(queryEmbedding, e.QueryEmbedding)
		if sim >= minSim && sim > bestSim {
			entry := e
			best = &entry
			bestSim = sim
		}
	}
	return best, eris.Wrap(rows.Err(), "postgres: iterate cache rows")
}

func (s *PostgresStore) InvalidateCacheByDocument(ctx context.Context, documentID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM response_cache WHERE cited_document_ids @> $1
	`, []string{documentID})
	if err != nil {
		return 0, eris.Wrap(err, "postgres: invalidate cache by document")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) SweepExpiredCache(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM response_cache WHERE ttl_epoch <= $1`, now.Unix())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: sweep expired cache")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dlq (id, document_id, phase, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.DocumentID, string(entry.Phase), entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, document_id, phase, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		FROM dlq WHERE next_retry_at <= now()`
	var args []any
	if filter.Phase != "" {
		args = append(args, string(filter.Phase))
		query += fmt.Sprintf(" AND phase = $%d", len(args))
	}
	if filter.ErrorType != "" {
		args = append(args, filter.ErrorType)
		query += fmt.Sprintf(" AND error_type = $%d", len(args))
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var out []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var phase string
		if err := rows.Scan(&e.ID, &e.DocumentID, &phase, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq row")
		}
		e.Phase = resilience.Phase(phase)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate dlq rows")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE dlq SET retry_count = retry_count + 1, next_retry_at = $2, last_failed_at = now(), error = $3
		WHERE id = $1
	`, id, nextRetryAt, lastErr)
	return eris.Wrap(err, "postgres: increment dlq retry")
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dlq WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq entry")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dlq`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count dlq")
}
