package resilience

import "time"

// Phase names the pipeline stage a DLQEntry failed in (extraction, loading,
// or indexing), so a replay worker knows which CLI step to re-invoke.
type Phase string

const (
	PhaseExtract Phase = "extract"
	PhaseLoad    Phase = "load-sql"
	PhaseIndex   Phase = "index"
)

// DLQEntry represents a document whose extraction, load, or index step
// failed and can be retried later. Unlike a transient per-call retry
// (handled inline by Do/DoVal), a DLQEntry survives process restarts once it
// is written through store.Store's EnqueueDLQ; no command in cmd/ enqueues
// or replays entries.
type DLQEntry struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Phase        Phase     `json:"phase"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	Phase     Phase  `json:"phase,omitempty"`
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
