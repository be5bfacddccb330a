package model

import "time"

// CacheEntry is one semantic Response Cache row, keyed by an L2-normalized
// query embedding. TTL is authoritative for lifecycle: readers
// must treat an entry whose TTLEpoch has elapsed as absent even before a
// sweep reclaims it.
type CacheEntry struct {
	ID               string    `json:"id"`
	QueryEmbedding   []float32 `json:"query_embedding"`
	CanonicalQuery   string    `json:"canonical_query"`
	Response         string    `json:"response"`
	ToolTraceSummary string    `json:"tool_trace_summary"`
	CitedDocumentIDs []string  `json:"cited_document_ids"`
	TTLEpoch         int64     `json:"ttl_epoch"` // unix seconds
	CreatedAt        time.Time `json:"created_at"`
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.Unix() >= e.TTLEpoch
}
