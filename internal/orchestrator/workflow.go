package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/research-cli/internal/agenterrors"
	"github.com/sells-group/research-cli/internal/anthropic"
	"github.com/sells-group/research-cli/internal/model"
)

// TaskQueueName is the Temporal task queue ConversationWorkflow runs on.
const TaskQueueName = "research-conversation"

// EventsQueryType is the Temporal query name a streaming consumer polls to
// drain events emitted so far by an in-flight workflow execution. True
// token-level streaming (TokenDelta per model token) would require holding
// the planner's completion open inside a single heartbeating activity;
// this workflow instead emits one PlannerThought per planning step and one
// ToolCallStart/ToolCallResult pair per tool call, which is coarser than
// the per-token contract but keeps every external call a clean,
// independently retryable activity.
const EventsQueryType = "events"

// ConversationWorkflow drives one conversation turn through the
// InputVerify → CacheRead → {CacheHit → OutputVerify → End} |
// {Plan → (ToolExec | Respond | Recover)} → CacheWrite → OutputVerify → End
// state machine, checkpointing after every transition.
func ConversationWorkflow(ctx workflow.Context, input TurnInput) (TurnResult, error) {
	if _, err := uuid.Parse(input.ConversationID); err != nil {
		return TurnResult{}, agenterrors.ValidationError("conversation_id must be a valid UUID", err)
	}

	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var a *Activities // method-value receiver only; the worker's real instance runs the activity

	state := model.ConversationState{ConversationID: input.ConversationID, CurrentState: model.StateStart}
	events := make([]model.Event, 0, 8)
	sequence := 0
	emit := func(e model.Event) {
		sequence++
		e.ConversationID = input.ConversationID
		e.Sequence = sequence
		events = append(events, e)
	}
	if err := workflow.SetQueryHandler(ctx, EventsQueryType, func() ([]model.Event, error) { return events, nil }); err != nil {
		return TurnResult{}, err
	}

	state.MessageLog = append(state.MessageLog, model.Message{Role: model.RoleUser, Content: input.Message, Timestamp: workflow.Now(ctx)})

	transition := func(next model.AgentState) error {
		state.CurrentState = next
		state.UpdatedAt = workflow.Now(ctx)
		return workflow.ExecuteActivity(ctx, a.CheckpointActivity, CheckpointInput{State: state}).Get(ctx, nil)
	}

	if err := transition(model.StateInputVerify); err != nil {
		return TurnResult{}, err
	}

	var verifyIn VerifyInputOutput
	if err := workflow.ExecuteActivity(ctx, a.VerifyInputActivity, VerifyInputInput{Message: input.Message}).Get(ctx, &verifyIn); err != nil {
		return recoverTurn(ctx, a, transition, emit, err.Error())
	}
	if verifyIn.Verdict.Classification == "blocked" {
		emit(model.Event{Type: model.EventError, ErrorCode: "input_blocked", ErrorMessage: verifyIn.Verdict.Reason})
		_ = transition(model.StateEnd)
		return TurnResult{Blocked: true, Caveat: verifyIn.Verdict.Reason}, nil
	}

	if err := transition(model.StateCacheRead); err != nil {
		return TurnResult{}, err
	}
	var cacheOut ReadCacheOutput
	_ = workflow.ExecuteActivity(ctx, a.ReadCacheActivity, ReadCacheInput{Message: input.Message}).Get(ctx, &cacheOut)

	if cacheOut.Hit {
		return respondFromCache(ctx, a, transition, emit, cacheOut, state)
	}

	messages := []anthropic.Message{anthropic.TextMessage("user", input.Message)}
	var citations []model.Citation
	var citedText []string
	var citedDocumentIDs []string
	finalAnswer := ""

	if err := transition(model.StatePlan); err != nil {
		return TurnResult{}, err
	}

	for i := 0; i < maxPlanIterations; i++ {
		if ctx.Err() != nil {
			return recoverTurn(ctx, a, transition, emit, "turn canceled")
		}

		var planOut PlanOutput
		if err := workflow.ExecuteActivity(ctx, a.PlanActivity, PlanInput{Messages: messages}).Get(ctx, &planOut); err != nil {
			return recoverTurn(ctx, a, transition, emit, err.Error())
		}
		if planOut.Thought != "" {
			emit(model.Event{Type: model.EventPlannerThought, TurnIndex: state.TurnIndex, Thought: planOut.Thought})
		}
		messages = append(messages, planOut.AssistantMessage)

		if planOut.FinalAnswer != "" {
			finalAnswer = planOut.FinalAnswer
			break
		}

		if err := transition(model.StateToolExec); err != nil {
			return TurnResult{}, err
		}

		resultBlocks := make([]anthropic.ContentBlock, 0, len(planOut.ToolCalls))
		for idx, call := range planOut.ToolCalls {
			emit(model.Event{Type: model.EventToolCallStart, TurnIndex: state.TurnIndex, ToolName: call.ToolName, ToolCallIndex: idx})

			var execOut ExecToolOutput
			if err := workflow.ExecuteActivity(ctx, a.ExecToolActivity, ExecToolInput{
				ToolUseID: call.ToolUseID, ToolName: call.ToolName, ToolInput: call.ToolInput,
			}).Get(ctx, &execOut); err != nil {
				execOut = ExecToolOutput{ResultText: err.Error(), IsError: true}
			}

			if !execOut.IsError && call.ToolName == "document_search" {
				var ragOut ragToolOutput
				if jsonErr := json.Unmarshal([]byte(execOut.ResultText), &ragOut); jsonErr == nil {
					for _, passage := range ragOut.Passages {
						citations = append(citations, passage.Citation)
						citedText = append(citedText, passage.Text)
						citedDocumentIDs = append(citedDocumentIDs, passage.Citation.DocumentID)
					}
				}
			}

			emit(model.Event{Type: model.EventToolCallResult, TurnIndex: state.TurnIndex, ToolName: call.ToolName, ToolCallIndex: idx})
			resultBlocks = append(resultBlocks, anthropic.ContentBlock{
				Type: anthropic.ContentToolResult, ToolUseID: call.ToolUseID,
				ToolResultText: execOut.ResultText, ToolResultErr: execOut.IsError,
			})
		}
		messages = append(messages, anthropic.Message{Role: "user", Blocks: resultBlocks})

		if err := transition(model.StatePlan); err != nil {
			return TurnResult{}, err
		}
	}

	if finalAnswer == "" {
		logger.Warn("plan/tool loop exhausted max iterations without a final answer")
		finalAnswer = "I was unable to reach a final answer within the allotted tool-use budget."
	}

	if err := transition(model.StateRespond); err != nil {
		return TurnResult{}, err
	}
	emit(model.Event{Type: model.EventFinalAnswer, TurnIndex: state.TurnIndex, FinalAnswer: finalAnswer, Citations: citations})

	if err := transition(model.StateCacheWrite); err != nil {
		return TurnResult{}, err
	}
	_ = workflow.ExecuteActivity(ctx, a.WriteCacheActivity, WriteCacheInput{
		Query: input.Message, Response: finalAnswer, CitedDocumentIDs: citedDocumentIDs,
	}).Get(ctx, nil)

	if err := transition(model.StateOutputVerify); err != nil {
		return TurnResult{}, err
	}
	var verifyOut VerifyOutputOutput
	if err := workflow.ExecuteActivity(ctx, a.VerifyOutputActivity, VerifyOutputInput{
		Response: finalAnswer, CitedText: citedText, Citations: citations,
	}).Get(ctx, &verifyOut); err != nil {
		return recoverTurn(ctx, a, transition, emit, err.Error())
	}

	if err := transition(model.StateEnd); err != nil {
		return TurnResult{}, err
	}

	return TurnResult{
		FinalAnswer: finalAnswer,
		Citations:   citations,
		Blocked:     verifyOut.Verdict.Blocked,
		Caveat:      verifyOut.Verdict.Caveat,
	}, nil
}

func respondFromCache(ctx workflow.Context, a *Activities, transition func(model.AgentState) error, emit func(model.Event), cacheOut ReadCacheOutput, state model.ConversationState) (TurnResult, error) {
	emit(model.Event{Type: model.EventFinalAnswer, TurnIndex: state.TurnIndex, FinalAnswer: cacheOut.Entry.Response})

	if err := transition(model.StateOutputVerify); err != nil {
		return TurnResult{}, err
	}
	var verifyOut VerifyOutputOutput
	_ = workflow.ExecuteActivity(ctx, a.VerifyOutputActivity, VerifyOutputInput{Response: cacheOut.Entry.Response}).Get(ctx, &verifyOut)

	if err := transition(model.StateEnd); err != nil {
		return TurnResult{}, err
	}
	return TurnResult{FinalAnswer: cacheOut.Entry.Response, Blocked: verifyOut.Verdict.Blocked, Caveat: verifyOut.Verdict.Caveat}, nil
}

// recoverTurn transitions to Recover → End with a safe fallback message,
// used whenever an activity returns a terminal error the loop can't make
// progress past. In-flight tool calls are allowed to return by the
// surrounding ExecuteActivity call before this runs; their results are
// discarded rather than merged into the message log.
func recoverTurn(ctx workflow.Context, a *Activities, transition func(model.AgentState) error, emit func(model.Event), reason string) (TurnResult, error) {
	emit(model.Event{Type: model.EventError, ErrorCode: "recovered", ErrorMessage: reason})
	if err := transition(model.StateRecover); err != nil {
		return TurnResult{}, err
	}
	fallback := "I ran into a problem completing this request. Please try again."
	if err := transition(model.StateEnd); err != nil {
		return TurnResult{}, err
	}
	return TurnResult{FinalAnswer: fallback}, nil
}
