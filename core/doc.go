// Package core defines the shared vocabulary of the kernelmesh SDK: role
// based chat content with a closed set of part types, the Event envelope used
// between agents, processes and clients, the Function abstraction invoked by
// the kernel, sessions with mutable state and event history, and the
// invocation context passed to executing functions.
//
// Higher level packages (plugin, agent, process, connector) depend on core;
// core depends on nothing but the logging abstraction.
package core
