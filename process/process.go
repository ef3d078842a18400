package process

import (
	"fmt"
	"sort"
)

// Visibility controls whether an event stays inside the process or is
// surfaced to the caller.
type Visibility string

const (
	// VisibilityInternal events are routed along edges only.
	VisibilityInternal Visibility = "internal"

	// VisibilityExternal events are additionally streamed to the caller.
	VisibilityExternal Visibility = "external"
)

// Event is the unit of communication inside a process: a routing key (ID),
// an optional payload and the step that emitted it (empty for input events).
type Event struct {
	ID         string     `json:"id"`
	Source     string     `json:"source,omitempty"`
	Data       any        `json:"data,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`
}

// TargetKind discriminates what an edge does with a routed event.
type TargetKind string

const (
	// TargetStep delivers the event payload into a step function parameter.
	TargetStep TargetKind = "step"

	// TargetStop terminates the process after the current superstep.
	TargetStop TargetKind = "stop"

	// TargetEmitExternal re-emits the event to the caller.
	TargetEmitExternal TargetKind = "emit"
)

// Target is one edge destination.
type Target struct {
	Kind      TargetKind `json:"kind"`
	StepID    string     `json:"step_id,omitempty"`
	Function  string     `json:"function,omitempty"`
	Parameter string     `json:"parameter,omitempty"`

	// EmitAs renames the event when re-emitted externally ("" keeps the
	// original ID).
	EmitAs string `json:"emit_as,omitempty"`
}

// FunctionTarget constructs a step delivery target.
func FunctionTarget(stepID, function, parameter string) Target {
	return Target{Kind: TargetStep, StepID: stepID, Function: function, Parameter: parameter}
}

// StopTarget constructs a process stop target.
func StopTarget() Target { return Target{Kind: TargetStop} }

// EmitTarget constructs an external emission target.
func EmitTarget(emitAs string) Target { return Target{Kind: TargetEmitExternal, EmitAs: emitAs} }

// StepNode is one step in the graph together with its outgoing edges, keyed
// by event ID.
type StepNode struct {
	ID    string
	Step  Step
	Edges map[string][]Target
}

// Definition is a validated, immutable process graph.
type Definition struct {
	Name  string
	Steps map[string]*StepNode

	// Input routes externally injected events (edges of the process itself).
	Input map[string][]Target
}

// StepIDs returns the step identifiers in sorted order.
func (d *Definition) StepIDs() []string {
	ids := make([]string, 0, len(d.Steps))
	for id := range d.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the graph for dangling references: every step target must
// name an existing step, function and declared parameter.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("process name must not be empty")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("process %s has no steps", d.Name)
	}
	for eventID, targets := range d.Input {
		for _, t := range targets {
			if err := d.validateTarget(t); err != nil {
				return fmt.Errorf("input event %s: %w", eventID, err)
			}
		}
	}
	for _, node := range d.Steps {
		for eventID, targets := range node.Edges {
			for _, t := range targets {
				if err := d.validateTarget(t); err != nil {
					return fmt.Errorf("step %s event %s: %w", node.ID, eventID, err)
				}
			}
		}
	}
	return nil
}

func (d *Definition) validateTarget(t Target) error {
	switch t.Kind {
	case TargetStop, TargetEmitExternal:
		return nil
	case TargetStep:
	default:
		return fmt.Errorf("unknown target kind %q", t.Kind)
	}
	node, ok := d.Steps[t.StepID]
	if !ok {
		return fmt.Errorf("target step %q not defined", t.StepID)
	}
	fn, ok := node.Step.Functions()[t.Function]
	if !ok {
		return fmt.Errorf("step %q has no function %q", t.StepID, t.Function)
	}
	for _, p := range fn.Parameters {
		if p == t.Parameter {
			return nil
		}
	}
	return fmt.Errorf("function %s.%s has no parameter %q", t.StepID, t.Function, t.Parameter)
}

// ResultEventID is the event emitted with a function's return value.
func ResultEventID(stepID, function string) string {
	return stepID + "." + function + ".OnResult"
}

// ErrorEventID is the event emitted when a function returns an error. Its
// payload is the error message.
func ErrorEventID(stepID, function string) string {
	return stepID + "." + function + ".OnError"
}
