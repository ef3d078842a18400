// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (agents, process runtime) from depending on concrete
// storage.
//
// Additional backends live in sub-packages (see redisstore); only the wiring
// layer needs to decide which implementation to instantiate.
package session
