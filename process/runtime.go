package process

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/logging"
	"github.com/kernelmesh/kernelmesh/telemetry"
)

// Options configures a Runtime.
type Options struct {
	// StateStore persists checkpoints (defaults to in-memory).
	StateStore StateStore

	// Logger defaults to NoOp if nil.
	Logger logging.Logger

	// MaxParallelSteps caps concurrent step function executions per
	// superstep. Zero means unbounded.
	MaxParallelSteps int

	// EventBufferSize sets the external event channel buffer.
	EventBufferSize int
}

// Runtime executes a process Definition locally: a superstep loop that runs
// all ready step functions concurrently, routes their events, checkpoints,
// and repeats until the process stops or goes quiescent with no caller input
// left.
type Runtime struct {
	def  *Definition
	opts Options
}

// NewRuntime creates a runtime for a definition.
func NewRuntime(def *Definition, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		StateStore:      NewMemoryStateStore(),
		Logger:          logging.NoOpLogger{},
		EventBufferSize: 64,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runtime{def: def, opts: opts}
}

// WithStateStore overrides the checkpoint store.
func WithStateStore(s StateStore) func(o *Options) {
	return func(o *Options) { o.StateStore = s }
}

// WithLogger sets the runtime logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithMaxParallelSteps caps per-superstep concurrency.
func WithMaxParallelSteps(n int) func(o *Options) {
	return func(o *Options) { o.MaxParallelSteps = n }
}

// Handle is a running process instance.
type Handle struct {
	processID string
	events    chan Event
	input     chan Event
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// ProcessID returns the instance identifier used for checkpoints.
func (h *Handle) ProcessID() string { return h.processID }

// Events streams externally visible events. The channel closes when the
// process finishes.
func (h *Handle) Events() <-chan Event { return h.events }

// Done closes when the process has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err reports the terminal error, if any, once Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// SendEvent injects an input event. It fails once the process has finished.
func (h *Handle) SendEvent(ev Event) error {
	select {
	case <-h.done:
		return fmt.Errorf("process %s already finished", h.processID)
	case h.input <- ev:
		return nil
	}
}

// Finish signals that no further input events will be sent; the process ends
// once quiescent.
func (h *Handle) Finish() { close(h.input) }

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

// execution is the mutable run state of one process instance.
type execution struct {
	rt        *Runtime
	processID string
	superstep int
	stopping  bool

	// pending accumulates edge-group inputs: step -> function -> parameter.
	pending map[string]map[string]map[string]any
	queue   []Delivery

	handle *Handle
}

// Start launches a fresh process instance.
func (rt *Runtime) Start(ctx context.Context) (*Handle, error) {
	return rt.start(ctx, &execution{
		rt:        rt,
		processID: core.NewID(),
		pending:   map[string]map[string]map[string]any{},
	})
}

// Resume reloads a checkpointed instance: step states are migrated and
// restored, partially filled inputs and queued deliveries are reinstated.
func (rt *Runtime) Resume(ctx context.Context, processID string) (*Handle, error) {
	cp, err := rt.opts.StateStore.Load(ctx, processID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for %s: %w", processID, err)
	}
	if cp.ProcessName != rt.def.Name {
		return nil, fmt.Errorf("checkpoint belongs to process %q, not %q", cp.ProcessName, rt.def.Name)
	}

	for stepID, scp := range cp.Steps {
		node, ok := rt.def.Steps[stepID]
		if !ok {
			return nil, fmt.Errorf("checkpoint references unknown step %q", stepID)
		}
		stateful, ok := node.Step.(Stateful)
		if !ok {
			return nil, fmt.Errorf("checkpoint has state for non-stateful step %q", stepID)
		}
		raw := scp.State
		if versioned, ok := node.Step.(Versioned); ok && scp.Version != versioned.StateVersion() {
			raw, err = versioned.MigrateState(scp.Version, raw)
			if err != nil {
				return nil, fmt.Errorf("failed to migrate state of step %s from v%d: %w", stepID, scp.Version, err)
			}
		}
		if err := stateful.RestoreState(raw); err != nil {
			return nil, fmt.Errorf("failed to restore state of step %s: %w", stepID, err)
		}
	}

	ex := &execution{
		rt:        rt,
		processID: processID,
		superstep: cp.Superstep,
		pending:   cp.Pending,
		queue:     cp.Queue,
	}
	if ex.pending == nil {
		ex.pending = map[string]map[string]map[string]any{}
	}
	return rt.start(ctx, ex)
}

func (rt *Runtime) start(ctx context.Context, ex *execution) (*Handle, error) {
	h := &Handle{
		processID: ex.processID,
		events:    make(chan Event, rt.opts.EventBufferSize),
		input:     make(chan Event, rt.opts.EventBufferSize),
		done:      make(chan struct{}),
	}
	ex.handle = h

	go func() {
		defer close(h.done)
		defer close(h.events)
		if err := rt.loop(ctx, ex); err != nil {
			rt.opts.Logger.Error("process.failed", "process", rt.def.Name, "process_id", ex.processID, "error", err.Error())
			h.setErr(err)
			return
		}
		rt.opts.Logger.Info("process.finished", "process", rt.def.Name, "process_id", ex.processID, "supersteps", ex.superstep)
	}()
	return h, nil
}

// Run drives a process to completion synchronously: inputs are injected, the
// graph runs until quiescent or stopped, and all external events are
// returned in emission order.
func (rt *Runtime) Run(ctx context.Context, inputs ...Event) ([]Event, error) {
	h, err := rt.Start(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range inputs {
		if err := h.SendEvent(ev); err != nil {
			return nil, err
		}
	}
	h.Finish()

	var external []Event
	for ev := range h.Events() {
		external = append(external, ev)
	}
	<-h.Done()
	return external, h.Err()
}

// loop is the superstep scheduler.
func (rt *Runtime) loop(ctx context.Context, ex *execution) error {
	input := ex.handle.input
	for {
		for len(ex.queue) > 0 && !ex.stopping {
			if err := rt.runSuperstep(ctx, ex); err != nil {
				return err
			}
		}
		if ex.stopping {
			return nil
		}

		// Quiescent: wait for caller input.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-input:
			if !ok {
				return nil
			}
			targets, wired := rt.def.Input[ev.ID]
			if !wired {
				return fmt.Errorf("input event %q is not wired", ev.ID)
			}
			if err := rt.routeEvent(ex, ev, targets); err != nil {
				return err
			}
		}
	}
}

// runSuperstep executes all currently queued deliveries concurrently, routes
// the emitted events and checkpoints the result.
func (rt *Runtime) runSuperstep(ctx context.Context, ex *execution) error {
	batch := ex.queue
	ex.queue = nil
	ex.superstep++

	outputs := make([][]Event, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	if rt.opts.MaxParallelSteps > 0 {
		g.SetLimit(rt.opts.MaxParallelSteps)
	}
	for i, d := range batch {
		sctx := &StepContext{
			Context:   gctx,
			ProcessID: ex.processID,
			StepID:    d.StepID,
			Function:  d.Function,
			logger:    rt.opts.Logger,
		}
		g.Go(func() error {
			start := time.Now()
			fn := rt.def.Steps[d.StepID].Step.Functions()[d.Function]
			value, err := fn.Handler(sctx, d.Args)
			rt.opts.Logger.Debug(
				"process.step.executed",
				"process", rt.def.Name,
				"step", d.StepID,
				"function", d.Function,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err != nil,
			)

			events := sctx.drain()
			if err != nil {
				events = append(events, Event{
					ID:     ErrorEventID(d.StepID, d.Function),
					Source: d.StepID,
					Data:   err.Error(),
				})
			} else if value != nil {
				events = append(events, Event{
					ID:     ResultEventID(d.StepID, d.Function),
					Source: d.StepID,
					Data:   value,
				})
			}
			outputs[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	emitted := 0
	for _, events := range outputs {
		for _, ev := range events {
			emitted++
			if err := rt.routeStepEvent(ex, ev); err != nil {
				return err
			}
		}
	}
	telemetry.ObserveSuperstep(rt.def.Name)
	telemetry.ObserveProcessEvents(rt.def.Name, emitted)

	return rt.checkpoint(ctx, ex)
}

// routeStepEvent routes an event emitted by a step along that step's edges.
// Externally visible events always reach the caller; unwired error events
// fail the run.
func (rt *Runtime) routeStepEvent(ex *execution, ev Event) error {
	if ev.Visibility == VisibilityExternal {
		ex.handle.events <- ev
	}
	targets := rt.def.Steps[ev.Source].Edges[ev.ID]
	if len(targets) == 0 && isErrorEvent(ev) {
		return fmt.Errorf("step %s failed: %v", ev.Source, ev.Data)
	}
	return rt.routeEvent(ex, ev, targets)
}

// isErrorEvent reports whether ev is an unhandled function error event.
func isErrorEvent(ev Event) bool {
	return strings.HasPrefix(ev.ID, ev.Source+".") && strings.HasSuffix(ev.ID, ".OnError")
}

// routeEvent applies an event to its targets.
func (rt *Runtime) routeEvent(ex *execution, ev Event, targets []Target) error {
	for _, t := range targets {
		switch t.Kind {
		case TargetStop:
			ex.stopping = true
		case TargetEmitExternal:
			out := ev
			if t.EmitAs != "" {
				out.ID = t.EmitAs
			}
			out.Visibility = VisibilityExternal
			ex.handle.events <- out
		case TargetStep:
			rt.deliver(ex, t, ev.Data)
		}
	}
	return nil
}

// deliver fills one parameter of a target function; when every declared
// parameter has a value the delivery is queued and the inputs reset.
func (rt *Runtime) deliver(ex *execution, t Target, value any) {
	stepPending, ok := ex.pending[t.StepID]
	if !ok {
		stepPending = map[string]map[string]any{}
		ex.pending[t.StepID] = stepPending
	}
	args, ok := stepPending[t.Function]
	if !ok {
		args = map[string]any{}
		stepPending[t.Function] = args
	}
	args[t.Parameter] = value

	fn := rt.def.Steps[t.StepID].Step.Functions()[t.Function]
	for _, p := range fn.Parameters {
		if _, ok := args[p]; !ok {
			return
		}
	}
	delete(stepPending, t.Function)
	ex.queue = append(ex.queue, Delivery{StepID: t.StepID, Function: t.Function, Args: args})
}

// checkpoint snapshots stateful steps and the routing state.
func (rt *Runtime) checkpoint(ctx context.Context, ex *execution) error {
	cp := &Checkpoint{
		ProcessID:   ex.processID,
		ProcessName: rt.def.Name,
		Superstep:   ex.superstep,
		SavedAt:     time.Now().UTC(),
		Steps:       map[string]StepCheckpoint{},
		Pending:     ClonePending(ex.pending),
		Queue:       CloneQueue(ex.queue),
	}
	for id, node := range rt.def.Steps {
		stateful, ok := node.Step.(Stateful)
		if !ok {
			continue
		}
		raw, err := stateful.SnapshotState()
		if err != nil {
			return fmt.Errorf("failed to snapshot state of step %s: %w", id, err)
		}
		scp := StepCheckpoint{State: raw}
		if versioned, ok := node.Step.(Versioned); ok {
			scp.Version = versioned.StateVersion()
		}
		cp.Steps[id] = scp
	}
	if err := rt.opts.StateStore.Save(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
