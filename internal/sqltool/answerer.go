package sqltool

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Answerer wires the planner, validator, and executor into the single
// public answer(question) operation.
type Answerer struct {
	planner  Planner
	executor Executor
}

func NewAnswerer(planner Planner, executor Executor) *Answerer {
	return &Answerer{planner: planner, executor: executor}
}

// Answer drives one natural-language question through plan -> validate ->
// execute -> format. Validation failures, timeouts and execution errors
// each return a user-facing message; a planning failure returns the
// planner's error wrapped with a user-facing prefix. Planning and execution
// failures are logged; validation failures and timeouts are not.
func (a *Answerer) Answer(ctx context.Context, question string) (AnsweredResult, error) {
	draft, err := a.planner.PlanQuery(ctx, question, schemaPrompt)
	if err != nil {
		zap.L().Warn("sqltool: planning failed", zap.Error(err))
		return AnsweredResult{}, eris.Wrap(err, "sqltool: unable to plan a query for that question")
	}

	validated, err := Validate(draft)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return AnsweredResult{}, eris.New("that question can't be answered safely: " + ve.Reason)
		}
		return AnsweredResult{}, eris.Wrap(err, "sqltool: validation failed")
	}

	result, err := a.executor.Query(ctx, validated)
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			return AnsweredResult{}, eris.New("query too expensive, refine")
		}
		zap.L().Error("sqltool: query execution failed", zap.String("sql", validated), zap.Error(err))
		return AnsweredResult{}, eris.New("sqltool: something went wrong answering that question")
	}

	return AnsweredResult{
		Narrative: formatNarrative(question, result),
		Table:     result,
		SQL:       validated,
	}, nil
}
