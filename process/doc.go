// Package process implements a step-graph workflow engine: a Definition wires
// named steps together with event edges, and a Runtime executes the graph in
// supersteps, routing every emitted event along its edges to downstream step
// functions.
//
// Steps expose named functions with named parameters. An edge delivers an
// event's payload into one parameter of one target function; a function with
// several parameters only fires once every parameter has received a value
// (an all-of join), after which its inputs reset. Events can also stop the
// process or surface externally to the caller.
//
// Stateful steps snapshot and restore their state as JSON, with optional
// version migration, so a process can be checkpointed to a StateStore after
// every superstep and resumed later, on another host if the store is shared.
package process
