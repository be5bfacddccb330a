package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // Register the pure-Go SQLite driver.

	"github.com/sells-group/research-cli/internal/model"
	"github.com/sells-group/research-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs
// checkpoint.driver "sqlite": conversation checkpoints, the response cache, and the
// dead-letter queue, all of which are single-row-keyed lookups that don't
// need pgvector. (Relational Store/Vector Index still require Postgres even
// in local mode — see internal/relstore and internal/vectorindex.)
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(10)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS checkpoints (
	conversation_id TEXT PRIMARY KEY,
	checkpoint_id   TEXT NOT NULL,
	state           TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS response_cache (
	id                 TEXT PRIMARY KEY,
	query_embedding    TEXT NOT NULL,
	canonical_query    TEXT NOT NULL,
	response           TEXT NOT NULL,
	tool_trace_summary TEXT NOT NULL,
	cited_document_ids TEXT NOT NULL,
	ttl_epoch          INTEGER NOT NULL,
	created_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_response_cache_ttl ON response_cache(ttl_epoch);

CREATE TABLE IF NOT EXISTS dlq (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL,
	phase          TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	last_failed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dlq(error_type);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, state model.ConversationState) (*model.Checkpoint, error) {
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal checkpoint state")
	}
	cp := &model.Checkpoint{
		CheckpointID:   uuid.New().String(),
		ConversationID: state.ConversationID,
		State:          state,
		CreatedAt:      time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (conversation_id, checkpoint_id, state, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			checkpoint_id = excluded.checkpoint_id,
			state = excluded.state,
			created_at = excluded.created_at
	`, state.ConversationID, cp.CheckpointID, string(blob), cp.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: save checkpoint")
	}
	return cp, nil
}

func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE conversation_id = ?`, conversationID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load checkpoint")
	}
	var state model.ConversationState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal checkpoint state")
	}
	return &state, nil
}

func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE conversation_id = ?`, conversationID)
	return eris.Wrap(err, "sqlite: delete checkpoint")
}

func (s *SQLiteStore) StoreCache(ctx context.Context, entry model.CacheEntry) error {
	embBlob, err := json.Marshal(entry.QueryEmbedding)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cache embedding")
	}
	citedBlob, err := json.Marshal(entry.CitedDocumentIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cited documents")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO response_cache
			(id, query_embedding, canonical_query, response, tool_trace_summary, cited_document_ids, ttl_epoch, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, string(embBlob), entry.CanonicalQuery, entry.Response, entry.ToolTraceSummary,
		string(citedBlob), entry.TTLEpoch, entry.CreatedAt.Format(time.RFC3339Nano))
	return eris.Wrap(err, "sqlite: store cache entry")
}

// LookupCache scans non-expired rows for the nearest embedding by cosine
// similarity. SQLite has no native vector index, so this is a brute-force
// scan; the Postgres backend does the same full scan ranked in Go (see
// PostgresStore.LookupCache).
func (s *SQLiteStore) LookupCache(ctx context.Context, queryEmbedding []float32, filter CacheFilter) (*model.CacheEntry, error) {
	minSim := filter.MinSimilarity
	if minSim <= 0 {
		minSim = 0.95
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_embedding, canonical_query, response, tool_trace_summary, cited_document_ids, ttl_epoch, created_at
		FROM response_cache
		WHERE ttl_epoch > ?
	`, time.Now().Unix())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query cache entries")
	}
	defer rows.Close()

	var best *model.CacheEntry
	bestSim := 0.0
	for rows.Next() {
		var (
			id, embBlob, canonical, response, trace, citedBlob, createdAt string
			ttl                                                           int64
		)
		if err := rows.Scan(&id, &embBlob, &canonical, &response, &trace, &citedBlob, &ttl, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache row")
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embBlob), &emb); err != nil {
			continue
		}
		sim := cosineSimilarity(queryEmbedding, emb)
		if sim < minSim || sim <= bestSim {
			continue
		}
		var cited []string
		_ = json.Unmarshal([]byte(citedBlob), &cited)
		created, _ := time.Parse(time.RFC3339Nano, createdAt)
		best = &model.CacheEntry{
			ID: id, QueryEmbedding: emb, CanonicalQuery: canonical, Response: response,
			ToolTraceSummary: trace, CitedDocumentIDs: cited, TTLEpoch: ttl, CreatedAt: created,
		}
		bestSim = sim
	}
	return best, eris.Wrap(rows.Err(), "sqlite: iterate cache rows")
}

func (s *SQLiteStore) InvalidateCacheByDocument(ctx context.Context, documentID string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, cited_document_ids FROM response_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: scan for invalidation")
	}
	var toDelete []string
	for rows.Next() {
		var id, citedBlob string
		if err := rows.Scan(&id, &citedBlob); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "sqlite: scan invalidation row")
		}
		var cited []string
		_ = json.Unmarshal([]byte(citedBlob), &cited)
		for _, c := range cited {
			if c == documentID {
				toDelete = append(toDelete, id)
				break
			}
		}
	}
	rows.Close()
	for _, id := range toDelete {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM response_cache WHERE id = ?`, id); err != nil {
			return 0, eris.Wrap(err, "sqlite: delete invalidated cache entry")
		}
	}
	return len(toDelete), nil
}

func (s *SQLiteStore) SweepExpiredCache(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM response_cache WHERE ttl_epoch <= ?`, now.Unix())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: sweep expired cache")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dlq (id, document_id, phase, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.DocumentID, string(entry.Phase), entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt.Format(time.RFC3339Nano),
		entry.CreatedAt.Format(time.RFC3339Nano), entry.LastFailedAt.Format(time.RFC3339Nano))
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, document_id, phase, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at FROM dlq WHERE next_retry_at <= ?`
	args := []any{time.Now().Format(time.RFC3339Nano)}
	if filter.Phase != "" {
		query += ` AND phase = ?`
		args = append(args, string(filter.Phase))
	}
	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY created_at ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var out []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var phase, nextRetry, created, lastFailed string
		if err := rows.Scan(&e.ID, &e.DocumentID, &phase, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &nextRetry, &created, &lastFailed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq row")
		}
		e.Phase = resilience.Phase(phase)
		e.NextRetryAt, _ = time.Parse(time.RFC3339Nano, nextRetry)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		e.LastFailedAt, _ = time.Parse(time.RFC3339Nano, lastFailed)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate dlq rows")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dlq SET retry_count = retry_count + 1, next_retry_at = ?, last_failed_at = ?, error = ?
		WHERE id = ?
	`, nextRetryAt.Format(time.RFC3339Nano), time.Now().Format(time.RFC3339Nano), lastErr, id)
	return eris.Wrap(err, "sqlite: increment dlq retry")
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dlq WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq entry")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dlq`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count dlq")
}
