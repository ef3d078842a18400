// Package kernelmesh provides the Kernel: the SDK's central object holding a
// registry of AI services (chat models, embedders), a plugin collection and an
// invocation filter chain. Most applications interact with this package by:
//  1. Creating a Kernel via New() with service and plugin options
//  2. Registering additional plugins / services at runtime
//  3. Invoking functions directly, or handing the kernel to an agent.ChatAgent
//     or a process runtime which invoke functions on their behalf
//
// The Kernel performs no orchestration of its own; it resolves services and
// functions, validates arguments, runs filters and records metrics. All
// defaults are safe for local development and testing; production deployments
// typically supply durable stores and a structured logger.
package kernelmesh

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kernelmesh/kernelmesh/artifact"
	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/logging"
	"github.com/kernelmesh/kernelmesh/plugin"
	"github.com/kernelmesh/kernelmesh/service"
	"github.com/kernelmesh/kernelmesh/session"
	"github.com/kernelmesh/kernelmesh/telemetry"
)

// InvocationFilter wraps function invocations middleware-style. A filter may
// inspect or rewrite the call, short-circuit by not calling next, or decorate
// the result. Filters run in registration order.
type InvocationFilter func(ictx *core.InvocationContext, call core.FunctionCall, next func() (*core.FunctionResult, error)) (*core.FunctionResult, error)

// Options configures a Kernel instance.
type Options struct {
	// ChatModels maps service IDs to chat model implementations. The empty
	// ID ("") designates the default selection.
	ChatModels map[string]service.ChatModel

	// Embedders maps service IDs to embedding implementations.
	Embedders map[string]service.Embedder

	// Plugins registered at construction time.
	Plugins []*plugin.Plugin

	// Filters applied around every function invocation, in order.
	Filters []InvocationFilter

	// SessionStore persists sessions (defaults to in-memory).
	SessionStore core.SessionStore

	// ArtifactStore persists binary artifacts (defaults to in-memory).
	ArtifactStore core.ArtifactStore

	// Logger defaults to NoOp if nil.
	Logger logging.Logger
}

// Kernel is the central service + plugin registry.
type Kernel struct {
	mu         sync.RWMutex
	chatModels map[string]service.ChatModel
	embedders  map[string]service.Embedder

	plugins *plugin.Collection
	filters []InvocationFilter

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	logger        logging.Logger
}

// New creates a Kernel with optional overrides. Any unset store is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Kernel {
	opts := Options{
		ChatModels:    map[string]service.ChatModel{},
		Embedders:     map[string]service.Embedder{},
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	k := &Kernel{
		chatModels:    make(map[string]service.ChatModel, len(opts.ChatModels)),
		embedders:     make(map[string]service.Embedder, len(opts.Embedders)),
		plugins:       plugin.NewCollection(),
		filters:       opts.Filters,
		sessionStore:  opts.SessionStore,
		artifactStore: opts.ArtifactStore,
		logger:        opts.Logger,
	}
	for id, m := range opts.ChatModels {
		k.chatModels[id] = m
	}
	for id, e := range opts.Embedders {
		k.embedders[id] = e
	}
	for _, p := range opts.Plugins {
		k.plugins.Add(p)
	}
	return k
}

// WithChatModel registers a chat model under the given service ID ("" makes
// it the default).
func WithChatModel(id string, m service.ChatModel) func(o *Options) {
	return func(o *Options) { o.ChatModels[id] = m }
}

// WithEmbedder registers an embedder under the given service ID.
func WithEmbedder(id string, e service.Embedder) func(o *Options) {
	return func(o *Options) { o.Embedders[id] = e }
}

// WithPlugin registers a plugin at construction time.
func WithPlugin(p *plugin.Plugin) func(o *Options) {
	return func(o *Options) { o.Plugins = append(o.Plugins, p) }
}

// WithFilter appends an invocation filter.
func WithFilter(f InvocationFilter) func(o *Options) {
	return func(o *Options) { o.Filters = append(o.Filters, f) }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithSessionStore overrides the session store.
func WithSessionStore(s core.SessionStore) func(o *Options) {
	return func(o *Options) { o.SessionStore = s }
}

// WithArtifactStore overrides the artifact store.
func WithArtifactStore(s core.ArtifactStore) func(o *Options) {
	return func(o *Options) { o.ArtifactStore = s }
}

// AddPlugin registers a plugin with the kernel. Re-registering a name
// replaces the previous plugin.
func (k *Kernel) AddPlugin(p *plugin.Plugin) { k.plugins.Add(p) }

// Plugin returns the named plugin and an existence flag.
func (k *Kernel) Plugin(name string) (*plugin.Plugin, bool) { return k.plugins.Get(name) }

// Plugins returns all registered plugins sorted by name.
func (k *Kernel) Plugins() []*plugin.Plugin { return k.plugins.All() }

// AddFilter appends an invocation filter at runtime. Filters added while
// invocations are in flight apply to subsequent invocations only.
func (k *Kernel) AddFilter(f InvocationFilter) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.filters = append(k.filters, f)
}

// RegisterChatModel adds or replaces a chat model under the given service ID.
func (k *Kernel) RegisterChatModel(id string, m service.ChatModel) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.chatModels[id] = m
}

// ChatModel resolves a chat model by service ID. The empty ID returns the
// default ("" entry, or the sole registered model).
func (k *Kernel) ChatModel(id string) (service.ChatModel, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if m, ok := k.chatModels[id]; ok {
		return m, nil
	}
	if id == "" && len(k.chatModels) == 1 {
		for _, m := range k.chatModels {
			return m, nil
		}
	}
	return nil, core.NewKernelError(core.ErrCodeServiceNotFound, fmt.Sprintf("chat model %q not registered", id))
}

// RegisterEmbedder adds or replaces an embedder under the given service ID.
func (k *Kernel) RegisterEmbedder(id string, e service.Embedder) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.embedders[id] = e
}

// Embedder resolves an embedder by service ID ("" = default, see ChatModel).
func (k *Kernel) Embedder(id string) (service.Embedder, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if e, ok := k.embedders[id]; ok {
		return e, nil
	}
	if id == "" && len(k.embedders) == 1 {
		for _, e := range k.embedders {
			return e, nil
		}
	}
	return nil, core.NewKernelError(core.ErrCodeServiceNotFound, fmt.Sprintf("embedder %q not registered", id))
}

// SessionStore returns the configured session store.
func (k *Kernel) SessionStore() core.SessionStore { return k.sessionStore }

// ArtifactStore returns the configured artifact store.
func (k *Kernel) ArtifactStore() core.ArtifactStore { return k.artifactStore }

// Logger returns the kernel logger.
func (k *Kernel) Logger() logging.Logger { return k.logger }

// InvokeOptions tunes a single function invocation.
type InvokeOptions struct {
	// SessionID binds the invocation to a session; state mutations performed
	// by the function are committed to it. Empty means an ephemeral session.
	SessionID string

	// FunctionCallID correlates the invocation with an originating model
	// tool call.
	FunctionCallID string
}

// InvokeFunction resolves plugin.function, runs the filter chain, executes
// the function and commits any staged state delta. Failures are surfaced as
// *core.KernelError (lookup) or the function's own error wrapped in the
// returned FunctionResult.
func (k *Kernel) InvokeFunction(
	ctx context.Context,
	pluginName, functionName string,
	args map[string]any,
	optFns ...func(o *InvokeOptions),
) (*core.FunctionResult, error) {
	var opts InvokeOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	fn, err := k.plugins.ResolveFunction(pluginName, functionName)
	if err != nil {
		return nil, err
	}

	var sess *core.Session
	if opts.SessionID != "" {
		sess, err = k.sessionStore.Get(opts.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
	}

	ictx := core.NewInvocationContext(ctx, opts.SessionID, core.NewID(), sess, k.sessionStore, k.artifactStore, k.logger)
	ictx.FunctionCallID = opts.FunctionCallID

	qualified := core.QualifiedName(pluginName, functionName)
	call := core.FunctionCall{ID: opts.FunctionCallID, Name: qualified}

	invoke := func() (*core.FunctionResult, error) {
		start := time.Now()
		value, callErr := fn.Call(ictx, args)
		telemetry.ObserveFunctionInvocation(pluginName, functionName, time.Since(start), callErr)
		if callErr != nil {
			return &core.FunctionResult{ID: opts.FunctionCallID, Name: qualified, Error: callErr.Error()}, callErr
		}
		return &core.FunctionResult{ID: opts.FunctionCallID, Name: qualified, Value: value}, nil
	}

	k.mu.RLock()
	filters := make([]InvocationFilter, len(k.filters))
	copy(filters, k.filters)
	k.mu.RUnlock()

	next := invoke
	for i := len(filters) - 1; i >= 0; i-- {
		filter, inner := filters[i], next
		next = func() (*core.FunctionResult, error) { return filter(ictx, call, inner) }
	}

	result, err := next()
	if err != nil {
		return result, err
	}

	if opts.SessionID != "" {
		if commitErr := ictx.CommitStateDelta(); commitErr != nil {
			return result, fmt.Errorf("failed to commit state delta: %w", commitErr)
		}
	}
	return result, nil
}

// ToolDefinitions exposes the given plugins' functions as model tool
// declarations. With no names, all registered plugins are included. Function
// names are qualified as "plugin.function".
func (k *Kernel) ToolDefinitions(pluginNames ...string) []service.ToolDefinition {
	var plugins []*plugin.Plugin
	if len(pluginNames) == 0 {
		plugins = k.plugins.All()
	} else {
		for _, name := range pluginNames {
			if p, ok := k.plugins.Get(name); ok {
				plugins = append(plugins, p)
			}
		}
	}

	var defs []service.ToolDefinition
	for _, p := range plugins {
		for _, fn := range p.Functions() {
			defs = append(defs, service.ToolDefinition{
				Type: "function",
				Function: service.FunctionDefinition{
					Name:        core.QualifiedName(p.Name(), fn.Name()),
					Description: fn.Description(),
					Parameters:  fn.Parameters(),
				},
			})
		}
	}
	return defs
}

// SplitQualifiedName splits "plugin.function" on the first dot. Names without
// a dot resolve to an empty plugin name.
func SplitQualifiedName(qualified string) (pluginName, functionName string) {
	if i := strings.Index(qualified, "."); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return "", qualified
}
