package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/kernelmesh/kernelmesh/logging"
)

// InvocationContext carries execution state & helpers for a function or agent
// invocation. It encapsulates the mutable, per-invocation execution scope:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, InvocationID, FunctionCallID)
//   - Backing services (session, artifact) for persistence concerns
//   - A working Session snapshot and pending StateDelta / Artifacts to commit
//
// State mutations performed via SetState accumulate in StateDelta until a
// consumer applies them (typically by attaching them to an emitted event's
// Actions). Fork produces an isolated delta/artifact buffer for a single
// function call while keeping references to the underlying services.
type InvocationContext struct {
	Context        context.Context
	SessionID      string
	InvocationID   string
	FunctionCallID string // Set when the invocation originates from a model tool call
	Session        *Session
	SessionStore   SessionStore
	ArtifactStore  ArtifactStore
	StateDelta     map[string]any
	Artifacts      []string

	*loggerAdapter
}

// NewInvocationContext constructs an InvocationContext with empty state and
// artifact deltas.
func NewInvocationContext(
	ctx context.Context,
	sessionID, invocationID string,
	sess *Session,
	sessionStore SessionStore,
	artifactStore ArtifactStore,
	logger logging.Logger,
) *InvocationContext {
	return &InvocationContext{
		Context:       ctx,
		SessionID:     sessionID,
		InvocationID:  invocationID,
		Session:       sess,
		SessionStore:  sessionStore,
		ArtifactStore: artifactStore,
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Fork returns a child context sharing services and session but with isolated
// delta/artifact buffers, bound to a specific function call ID. Used by agents
// to give each tool call its own accumulation scope.
func (ic *InvocationContext) Fork(functionCallID string) *InvocationContext {
	child := NewInvocationContext(
		ic.Context,
		ic.SessionID,
		ic.InvocationID,
		ic.Session,
		ic.SessionStore,
		ic.ArtifactStore,
		ic.Logger(),
	)
	child.FunctionCallID = functionCallID
	return child
}

// Done returns a channel closed when the underlying context is cancelled.
func (ic *InvocationContext) Done() <-chan struct{} { return ic.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (ic *InvocationContext) Err() error { return ic.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted
// session value. The boolean reports whether a value was found.
func (ic *InvocationContext) GetState(k string) (any, bool) {
	if v, ok := ic.StateDelta[k]; ok {
		return v, true
	}
	if ic.Session != nil {
		return ic.Session.GetState(k)
	}
	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (ic *InvocationContext) SetState(k string, v any) { ic.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (ic *InvocationContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(ic.StateDelta, d)
}

// AddArtifact stages an artifact id to be attached to the next emitted event.
func (ic *InvocationContext) AddArtifact(id string) { ic.Artifacts = append(ic.Artifacts, id) }

// SaveArtifact stores bytes in the ArtifactStore and stages the id.
func (ic *InvocationContext) SaveArtifact(id string, data []byte) error {
	if ic.ArtifactStore == nil {
		return fmt.Errorf("artifact store not configured")
	}
	if err := ic.ArtifactStore.Save(ic.SessionID, id, data); err != nil {
		return err
	}
	ic.AddArtifact(id)
	return nil
}

// GetArtifact retrieves previously saved artifact bytes.
func (ic *InvocationContext) GetArtifact(id string) ([]byte, error) {
	if ic.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}
	return ic.ArtifactStore.Get(ic.SessionID, id)
}

// ListArtifacts returns artifact IDs stored for the session.
func (ic *InvocationContext) ListArtifacts() ([]string, error) {
	if ic.ArtifactStore == nil {
		return []string{}, nil
	}
	return ic.ArtifactStore.List(ic.SessionID)
}

// CommitStateDelta persists staged state mutations through the SessionStore
// and clears the buffer.
func (ic *InvocationContext) CommitStateDelta() error {
	if len(ic.StateDelta) == 0 {
		return nil
	}
	if ic.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}
	if err := ic.SessionStore.ApplyDelta(ic.SessionID, ic.StateDelta); err != nil {
		return err
	}
	ic.StateDelta = map[string]any{}
	return nil
}

// loggerAdapter wraps a logging.Logger and exposes convenience methods
// (LogDebug/LogInfo/LogWarn/LogError). It guarantees a non-nil logger by
// substituting a NoOpLogger when constructed with nil.
type loggerAdapter struct {
	logger logging.Logger
}

// newLoggerAdapter constructs a loggerAdapter with a non-nil logger.
func newLoggerAdapter(l logging.Logger) *loggerAdapter {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &loggerAdapter{logger: l}
}

// Logger returns the underlying logger.
func (l *loggerAdapter) Logger() logging.Logger { return l.logger }

// LogDebug logs a debug message.
func (l *loggerAdapter) LogDebug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// LogInfo logs an info message.
func (l *loggerAdapter) LogInfo(msg string, args ...any) { l.logger.Info(msg, args...) }

// LogWarn logs a warning message.
func (l *loggerAdapter) LogWarn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// LogError logs an error message.
func (l *loggerAdapter) LogError(msg string, args ...any) { l.logger.Error(msg, args...) }
