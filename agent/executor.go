package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/kernelmesh/kernelmesh"
	"github.com/kernelmesh/kernelmesh/core"
)

// executeCalls runs a batch of model-requested function calls through the
// kernel, bounded by MaxParallelTools, and emits one function result event per
// call in the original order. Panics inside functions are recovered and
// surfaced as errors so a misbehaving tool cannot take down the agent.
func (a *ChatAgent) executeCalls(
	ctx context.Context,
	invocationID string,
	thread *Thread,
	calls []core.FunctionCall,
	events chan<- core.Event,
) (*core.Event, error) {
	n := len(calls)
	results := make([]core.FunctionResult, n)

	maxPar := a.opts.MaxParallelTools
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		if err := ctx.Err(); err != nil {
			// Undispatched calls still answer with their own ID and name so
			// the transcript never carries blank tool results.
			for j := i; j < n; j++ {
				results[j] = core.FunctionResult{
					ID:    calls[j].ID,
					Name:  calls[j].Name,
					Error: fmt.Sprintf("not executed: %v", err),
				}
			}
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = a.executeSingle(ctx, thread, fc)
		}(i, calls[i])
	}
	wg.Wait()

	a.kernel.Logger().Debug(
		"agent.functions.batch.complete",
		"agent", a.name,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	// Emit in request order so the conversation transcript stays stable.
	var lastEvent *core.Event
	for i := range calls {
		ev := core.NewEvent(invocationID, a.name)
		fr := results[i]
		ev.Content = &core.Content{Role: "tool", Parts: []core.Part{core.FunctionResultPart{FunctionResult: fr}}}
		events <- ev
		if err := thread.AddEvent(ev); err != nil {
			return nil, fmt.Errorf("failed to persist function result: %w", err)
		}
		lastEvent = &ev
	}
	return lastEvent, nil
}

// executeSingle invokes one function call with panic recovery.
func (a *ChatAgent) executeSingle(ctx context.Context, thread *Thread, fc core.FunctionCall) (fr core.FunctionResult) {
	logger := a.kernel.Logger()
	fr = core.FunctionResult{ID: fc.ID, Name: fc.Name}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("agent.function.panic", "agent", a.name, "function", fc.Name, "recover", fmt.Sprintf("%v", r), "stack", string(debug.Stack()))
			fr.Value = nil
			fr.Error = fmt.Sprintf("function panicked: %v", r)
		}
	}()

	pluginName, functionName := kernelmesh.SplitQualifiedName(fc.Name)

	var args map[string]any
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			fr.Error = fmt.Sprintf("invalid arguments: %v", err)
			return fr
		}
	}

	start := time.Now()
	result, err := a.kernel.InvokeFunction(ctx, pluginName, functionName, args, func(o *kernelmesh.InvokeOptions) {
		o.SessionID = thread.ID()
		o.FunctionCallID = fc.ID
	})
	logger.Info(
		"agent.function.executed",
		"agent", a.name,
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)
	if err != nil {
		fr.Error = err.Error()
		return fr
	}
	fr.Value = result.Value
	return fr
}
