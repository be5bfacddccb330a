package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/anthropic"
	"github.com/sells-group/research-cli/internal/model"
	"github.com/sells-group/research-cli/internal/verifier"
)

const maxPlanIterations = 8

// Activities holds every dependency the workflow's activity methods call
// through. Registered on a Temporal worker with worker.RegisterActivity;
// each method is also directly unit-testable since it takes a plain
// context.Context, not a workflow.Context.
type Activities struct {
	Planner      Planner
	Model        string
	MaxTokens    int64
	SystemPrompt string
	Registry     *Registry
	Checkpoints  CheckpointStore
	Cache        ResponseCache
	InputGate    *verifier.InputGate
	OutputGate   *verifier.OutputGate
}

// VerifyInputInput/Output bracket the InputVerify node.
type VerifyInputInput struct {
	Message string
}

type VerifyInputOutput struct {
	Verdict verifier.InputVerdict
}

func (a *Activities) VerifyInputActivity(ctx context.Context, in VerifyInputInput) (VerifyInputOutput, error) {
	verdict, err := a.InputGate.Check(ctx, in.Message)
	if err != nil {
		return VerifyInputOutput{}, eris.Wrap(err, "orchestrator: input verify")
	}
	return VerifyInputOutput{Verdict: verdict}, nil
}

// ReadCacheInput/Output bracket the CacheRead node.
type ReadCacheInput struct {
	Message string
}

type ReadCacheOutput struct {
	Hit   bool
	Entry *model.CacheEntry
}

func (a *Activities) ReadCacheActivity(ctx context.Context, in ReadCacheInput) (ReadCacheOutput, error) {
	entry, hit, err := a.Cache.Lookup(ctx, in.Message)
	if err != nil {
		zap.L().Warn("orchestrator: cache lookup failed, proceeding to plan", zap.Error(err))
		return ReadCacheOutput{}, nil
	}
	return ReadCacheOutput{Hit: hit, Entry: entry}, nil
}

// PlanInput/Output bracket one Plan node invocation — one CreateMessage
// call over the running message log.
type PlanInput struct {
	Messages []anthropic.Message
}

type PlanOutput struct {
	Thought     string
	ToolCalls   []anthropic.ContentBlock // Type == ContentToolUse
	FinalAnswer string
	AssistantMessage anthropic.Message // appended to the running log by the caller
}

func (a *Activities) PlanActivity(ctx context.Context, in PlanInput) (PlanOutput, error) {
	resp, err := a.Planner.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(a.SystemPrompt),
		Messages:  in.Messages,
		Tools:     a.Registry.Definitions(),
	})
	if err != nil {
		return PlanOutput{}, eris.Wrap(err, "orchestrator: plan")
	}

	out := PlanOutput{Thought: resp.FirstText(), ToolCalls: resp.ToolCalls()}
	blocks := make([]anthropic.ContentBlock, 0, len(resp.Content))
	blocks = append(blocks, resp.Content...)
	out.AssistantMessage = anthropic.Message{Role: "assistant", Blocks: blocks}

	if len(out.ToolCalls) == 0 {
		out.FinalAnswer = out.Thought
	}
	return out, nil
}

// ExecToolInput/Output bracket one ToolExec node invocation — one tool
// call dispatched by name.
type ExecToolInput struct {
	ToolUseID string
	ToolName  string
	ToolInput json.RawMessage
}

type ExecToolOutput struct {
	ResultText string
	IsError    bool
}

func (a *Activities) ExecToolActivity(ctx context.Context, in ExecToolInput) (ExecToolOutput, error) {
	tool, ok := a.Registry.Get(in.ToolName)
	if !ok {
		return ExecToolOutput{ResultText: fmt.Sprintf("unknown tool %q", in.ToolName), IsError: true}, nil
	}
	result, err := tool.Call(ctx, in.ToolInput)
	if err != nil {
		zap.L().Warn("orchestrator: tool call failed", zap.String("tool", in.ToolName), zap.Error(err))
		return ExecToolOutput{ResultText: err.Error(), IsError: true}, nil
	}
	return ExecToolOutput{ResultText: string(result)}, nil
}

// WriteCacheInput brackets the CacheWrite node.
type WriteCacheInput struct {
	Query            string
	Response         string
	ToolTraceSummary string
	CitedDocumentIDs []string
}

func (a *Activities) WriteCacheActivity(ctx context.Context, in WriteCacheInput) error {
	if err := a.Cache.Store(ctx, in.Query, in.Response, in.ToolTraceSummary, in.CitedDocumentIDs); err != nil {
		zap.L().Warn("orchestrator: cache write failed, response already delivered", zap.Error(err))
	}
	return nil
}

// VerifyOutputInput/Output bracket the OutputVerify node.
type VerifyOutputInput struct {
	Response  string
	CitedText []string
	Citations []model.Citation
}

type VerifyOutputOutput struct {
	Verdict verifier.OutputVerdict
}

func (a *Activities) VerifyOutputActivity(ctx context.Context, in VerifyOutputInput) (VerifyOutputOutput, error) {
	verdict, err := a.OutputGate.Check(ctx, in.Response, in.CitedText, in.Citations)
	if err != nil {
		return VerifyOutputOutput{}, eris.Wrap(err, "orchestrator: output verify")
	}
	return VerifyOutputOutput{Verdict: verdict}, nil
}

// CheckpointInput persists one state-machine transition.
type CheckpointInput struct {
	State model.ConversationState
}

func (a *Activities) CheckpointActivity(ctx context.Context, in CheckpointInput) error {
	_, err := a.Checkpoints.SaveCheckpoint(ctx, in.State)
	return err
}
