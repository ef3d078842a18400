package agent

import (
	"context"
	"fmt"

	"github.com/kernelmesh/kernelmesh"
	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/service"
)

// Options configures a ChatAgent.
type Options struct {
	// Description is surfaced in logs and metadata.
	Description string

	// Instructions is the system prompt sent on every model turn.
	Instructions string

	// ServiceID selects the chat model from the kernel ("" = default).
	ServiceID string

	// Plugins restricts which plugins are exposed as tools. Empty exposes all
	// registered plugins.
	Plugins []string

	// MaxIterations bounds the model turn loop (model call + tool round).
	MaxIterations int

	// MaxParallelTools caps concurrent function executions per turn.
	MaxParallelTools int

	// Reducer trims history before each model call. Nil sends full history.
	Reducer HistoryReducer

	// Stream forwards partial model chunks as partial events.
	Stream bool
}

// ChatAgent is a tool-calling conversational agent bound to a kernel.
type ChatAgent struct {
	name   string
	kernel *kernelmesh.Kernel
	opts   Options
}

// New creates a ChatAgent.
func New(kernel *kernelmesh.Kernel, name string, optFns ...func(o *Options)) *ChatAgent {
	opts := Options{
		MaxIterations:    10,
		MaxParallelTools: 4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ChatAgent{name: name, kernel: kernel, opts: opts}
}

// Name returns the agent name used as event author.
func (a *ChatAgent) Name() string { return a.name }

// Run appends the user message to the thread and launches the turn loop
// asynchronously, returning a channel of events. The channel carries partial
// chunks (when streaming), assistant messages, function results and a
// terminal error event if the loop fails; it is closed when the turn
// completes.
func (a *ChatAgent) Run(ctx context.Context, thread *Thread, message string) (<-chan core.Event, error) {
	if message != "" {
		if err := thread.AddUserMessage(message); err != nil {
			return nil, fmt.Errorf("failed to append user message: %w", err)
		}
	}

	events := make(chan core.Event, 100)
	go func() {
		defer close(events)
		a.runLoop(ctx, thread, events)
	}()
	return events, nil
}

// Invoke runs a full turn synchronously and returns the final assistant
// content.
func (a *ChatAgent) Invoke(ctx context.Context, thread *Thread, message string) (*core.Content, error) {
	events, err := a.Run(ctx, thread, message)
	if err != nil {
		return nil, err
	}
	var final *core.Content
	for ev := range events {
		if ev.ErrorMessage != nil {
			return nil, fmt.Errorf("agent run failed: %s", *ev.ErrorMessage)
		}
		if !ev.IsPartial() && ev.Content != nil && ev.Content.Role == "assistant" && len(ev.GetFunctionCalls()) == 0 {
			c := *ev.Content
			final = &c
		}
	}
	if final == nil {
		return nil, fmt.Errorf("agent produced no final response")
	}
	return final, nil
}

// runLoop executes model turns until a final response, an error, or the
// iteration budget is hit.
func (a *ChatAgent) runLoop(ctx context.Context, thread *Thread, events chan<- core.Event) {
	invocationID := core.NewID()
	logger := a.kernel.Logger()

	for i := 0; i < a.opts.MaxIterations; i++ {
		last, err := a.runOnce(ctx, invocationID, thread, events)
		if err != nil {
			logger.Error("agent.turn.failed", "agent", a.name, "error", err.Error())
			a.emitError(events, invocationID, err)
			return
		}
		if last == nil {
			return
		}
		// A function result means the model needs another turn to read it.
		if len(last.GetFunctionResults()) > 0 {
			continue
		}
		if last.IsFinalResponse() {
			return
		}
	}
	logger.Warn("agent.turn.budget_exhausted", "agent", a.name, "max_iterations", a.opts.MaxIterations)
	a.emitError(events, invocationID, fmt.Errorf("no final response after %d iterations", a.opts.MaxIterations))
}

// runOnce performs one model turn including tool executions and returns the
// last emitted event.
func (a *ChatAgent) runOnce(ctx context.Context, invocationID string, thread *Thread, events chan<- core.Event) (*core.Event, error) {
	req, err := a.buildRequest(ctx, thread)
	if err != nil {
		return nil, err
	}

	model, err := a.kernel.ChatModel(a.opts.ServiceID)
	if err != nil {
		return nil, err
	}

	respCh, errCh := model.Generate(ctx, req)

	var lastEvent *core.Event
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case genErr, ok := <-errCh:
			if ok && genErr != nil {
				return nil, genErr
			}
			errCh = nil
		case resp, ok := <-respCh:
			if !ok {
				return lastEvent, nil
			}

			ev := core.NewEvent(invocationID, a.name)
			content := resp.Content
			ev.Content = &content
			partial := resp.Partial
			ev.Partial = &partial
			if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
				complete := true
				ev.TurnComplete = &complete
			}
			lastEvent = &ev

			if resp.Partial {
				if a.opts.Stream {
					events <- ev
				}
				continue
			}

			events <- ev
			if err := thread.AddEvent(ev); err != nil {
				return nil, fmt.Errorf("failed to persist assistant event: %w", err)
			}

			if calls := ev.GetFunctionCalls(); len(calls) > 0 {
				last, err := a.executeCalls(ctx, invocationID, thread, calls, events)
				if err != nil {
					return nil, err
				}
				lastEvent = last
			}
		}
	}
}

// buildRequest assembles the model request from instructions, reduced history
// and tool declarations.
func (a *ChatAgent) buildRequest(ctx context.Context, thread *Thread) (service.Request, error) {
	history, err := thread.History()
	if err != nil {
		return service.Request{}, fmt.Errorf("failed to load thread history: %w", err)
	}
	if a.opts.Reducer != nil {
		history, err = a.opts.Reducer.Reduce(ctx, history)
		if err != nil {
			return service.Request{}, fmt.Errorf("failed to reduce history: %w", err)
		}
	}
	return service.Request{
		Instructions: a.opts.Instructions,
		Contents:     history,
		Tools:        a.kernel.ToolDefinitions(a.opts.Plugins...),
		Stream:       a.opts.Stream,
	}, nil
}

func (a *ChatAgent) emitError(events chan<- core.Event, invocationID string, err error) {
	ev := core.NewEvent(invocationID, a.name)
	msg := err.Error()
	ev.ErrorMessage = &msg
	if code := core.KernelErrorCode(err); code != "" {
		ev.ErrorCode = &code
	}
	events <- ev
}
