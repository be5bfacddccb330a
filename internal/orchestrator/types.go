// Package orchestrator implements the conversation agent core: the
// Temporal-backed state machine (Start → InputVerify → CacheRead →
// {CacheHit → OutputVerify → End} | {Plan → (ToolExec | Respond |
// Recover)} → ... → CacheWrite → OutputVerify → End), its tool registry,
// and the typed event stream each turn emits.
package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/sells-group/research-cli/internal/anthropic"
	"github.com/sells-group/research-cli/internal/model"
)

// Planner is the narrow LLM surface the tool loop drives: one
// CreateMessage call carrying the running message log and the tool
// registry's definitions. Satisfied directly by anthropic.Client.
type Planner interface {
	CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

// CheckpointStore is the narrow persistence surface the workflow's
// per-node checkpointing needs. Narrow local interface over store.Store.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, state model.ConversationState) (*model.Checkpoint, error)
	LoadCheckpoint(ctx context.Context, conversationID string) (*model.ConversationState, error)
	DeleteCheckpoint(ctx context.Context, conversationID string) error
}

// ResponseCache is the narrow semantic-cache surface CacheRead/CacheWrite
// need. Narrow local interface over cache.ResponseCache.
type ResponseCache interface {
	Lookup(ctx context.Context, query string) (*model.CacheEntry, bool, error)
	Store(ctx context.Context, query, response, toolTraceSummary string, citedDocumentIDs []string) error
}

// Tool is one callable capability the planner can invoke by name.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// TurnInput is the workflow's input: the message just received.
type TurnInput struct {
	ConversationID string
	Message        string
}

// TurnResult is the workflow's terminal output.
type TurnResult struct {
	FinalAnswer string
	Citations   []model.Citation
	Blocked     bool
	Caveat      string
}
