package process

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kernelmesh/kernelmesh/logging"
)

// StepFunction is one invocable operation of a step. Parameters declares the
// named inputs; a multi-parameter function fires only after every parameter
// has received a value (see package docs).
type StepFunction struct {
	Parameters []string
	Handler    func(sctx *StepContext, args map[string]any) (any, error)
}

// Step is a node implementation: a name plus its function registry. The
// returned map must be stable across calls.
type Step interface {
	Name() string
	Functions() map[string]StepFunction
}

// Stateful is implemented by steps whose state must survive checkpointing.
// SnapshotState is called after each superstep, RestoreState on resume.
type Stateful interface {
	SnapshotState() (json.RawMessage, error)
	RestoreState(raw json.RawMessage) error
}

// Versioned is implemented by stateful steps whose snapshot layout evolves.
// On resume, a checkpoint carrying an older version is passed through
// MigrateState before RestoreState.
type Versioned interface {
	StateVersion() int
	MigrateState(from int, raw json.RawMessage) (json.RawMessage, error)
}

// StepContext is handed to step function handlers. It carries the execution
// context, identity and an event emitter; emitted events are routed at the
// end of the superstep.
type StepContext struct {
	context.Context

	ProcessID string
	StepID    string
	Function  string

	logger logging.Logger

	mu     sync.Mutex
	events []Event
}

// Emit queues an internal event for routing after the current superstep.
func (c *StepContext) Emit(id string, data any) {
	c.emit(Event{ID: id, Source: c.StepID, Data: data, Visibility: VisibilityInternal})
}

// EmitExternal queues an event that is also surfaced to the process caller.
func (c *StepContext) EmitExternal(id string, data any) {
	c.emit(Event{ID: id, Source: c.StepID, Data: data, Visibility: VisibilityExternal})
}

func (c *StepContext) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// drain returns and clears the queued events.
func (c *StepContext) drain() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.events
	c.events = nil
	return events
}

// Logger returns the runtime logger.
func (c *StepContext) Logger() logging.Logger { return c.logger }

// FuncStep is a convenience Step built from plain functions, for steps that
// need no struct of their own.
type FuncStep struct {
	name      string
	functions map[string]StepFunction
}

// NewFuncStep creates a FuncStep with the given function registry.
func NewFuncStep(name string, functions map[string]StepFunction) *FuncStep {
	return &FuncStep{name: name, functions: functions}
}

// Name implements Step.
func (s *FuncStep) Name() string { return s.name }

// Functions implements Step.
func (s *FuncStep) Functions() map[string]StepFunction { return s.functions }
