package process

import (
	"fmt"
)

// Builder assembles a process Definition. Errors found while declaring the
// graph are deferred and reported by Build, keeping call sites fluent.
type Builder struct {
	name  string
	steps map[string]*StepNode
	input map[string][]Target
	errs  []error
}

// NewBuilder starts a new process definition.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:  name,
		steps: map[string]*StepNode{},
		input: map[string][]Target{},
	}
}

// AddStep registers a step under the given ID and returns a StepBuilder for
// wiring its outgoing edges.
func (b *Builder) AddStep(id string, step Step) *StepBuilder {
	if _, exists := b.steps[id]; exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate step id %q", id))
	}
	node := &StepNode{ID: id, Step: step, Edges: map[string][]Target{}}
	b.steps[id] = node
	return &StepBuilder{builder: b, node: node}
}

// OnInputEvent wires an externally injected event to targets.
func (b *Builder) OnInputEvent(eventID string) *EdgeBuilder {
	return &EdgeBuilder{
		add: func(t Target) { b.input[eventID] = append(b.input[eventID], t) },
	}
}

// Build validates and returns the definition.
func (b *Builder) Build() (*Definition, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	def := &Definition{Name: b.name, Steps: b.steps, Input: b.input}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// MustBuild is Build that panics on error, for statically known graphs.
func (b *Builder) MustBuild() *Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// StepBuilder wires the outgoing edges of one step.
type StepBuilder struct {
	builder *Builder
	node    *StepNode
}

// OnEvent wires an event emitted by this step to targets.
func (s *StepBuilder) OnEvent(eventID string) *EdgeBuilder {
	return &EdgeBuilder{
		add: func(t Target) { s.node.Edges[eventID] = append(s.node.Edges[eventID], t) },
	}
}

// OnFunctionResult wires the return value of one of this step's functions.
func (s *StepBuilder) OnFunctionResult(function string) *EdgeBuilder {
	return s.OnEvent(ResultEventID(s.node.ID, function))
}

// OnFunctionError wires the error event of one of this step's functions.
// Unwired errors fail the process run.
func (s *StepBuilder) OnFunctionError(function string) *EdgeBuilder {
	return s.OnEvent(ErrorEventID(s.node.ID, function))
}

// EdgeBuilder accumulates targets for one event. Methods return the builder
// so several targets can be chained.
type EdgeBuilder struct {
	add func(Target)
}

// SendEventTo delivers the event payload into a step function parameter.
func (e *EdgeBuilder) SendEventTo(stepID, function, parameter string) *EdgeBuilder {
	e.add(FunctionTarget(stepID, function, parameter))
	return e
}

// StopProcess terminates the process when the event fires.
func (e *EdgeBuilder) StopProcess() *EdgeBuilder {
	e.add(StopTarget())
	return e
}

// EmitExternal surfaces the event to the caller, optionally renamed.
func (e *EdgeBuilder) EmitExternal(emitAs string) *EdgeBuilder {
	e.add(EmitTarget(emitAs))
	return e
}
