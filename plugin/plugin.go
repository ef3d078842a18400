// Package plugin implements the kernel's capability registration subsystem: a
// plugin is a named collection of invocable functions (native Go code wrapped
// with schema validated arguments, consistent error handling and rich
// metadata for model guidance).
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kernelmesh/kernelmesh/core"
)

// Plugin is a named, immutable-after-construction collection of functions.
type Plugin struct {
	name        string
	description string
	functions   map[string]core.Function
}

// New creates a plugin from the given functions. Function names must be
// unique within the plugin.
func New(name, description string, fns ...core.Function) (*Plugin, error) {
	if name == "" {
		return nil, fmt.Errorf("plugin name must not be empty")
	}
	p := &Plugin{name: name, description: description, functions: make(map[string]core.Function, len(fns))}
	for _, fn := range fns {
		if _, exists := p.functions[fn.Name()]; exists {
			return nil, fmt.Errorf("duplicate function %q in plugin %q", fn.Name(), name)
		}
		p.functions[fn.Name()] = fn
	}
	return p, nil
}

// MustNew is like New but panics on error. Intended for package-level plugin
// construction where the function set is static.
func MustNew(name, description string, fns ...core.Function) *Plugin {
	p, err := New(name, description, fns...)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the plugin name.
func (p *Plugin) Name() string { return p.name }

// Description returns the plugin description.
func (p *Plugin) Description() string { return p.description }

// Function returns the named function and an existence flag.
func (p *Plugin) Function(name string) (core.Function, bool) {
	fn, ok := p.functions[name]
	return fn, ok
}

// Functions returns the plugin's functions sorted by name.
func (p *Plugin) Functions() []core.Function {
	names := make([]string, 0, len(p.functions))
	for n := range p.functions {
		names = append(names, n)
	}
	sort.Strings(names)
	fns := make([]core.Function, 0, len(names))
	for _, n := range names {
		fns = append(fns, p.functions[n])
	}
	return fns
}

// Collection is a thread-safe registry of plugins keyed by name.
type Collection struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewCollection creates an empty plugin collection.
func NewCollection() *Collection {
	return &Collection{plugins: make(map[string]*Plugin)}
}

// Add registers a plugin. Re-registering a name replaces the previous plugin.
func (c *Collection) Add(p *Plugin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plugins[p.Name()] = p
}

// Get returns the named plugin and an existence flag.
func (c *Collection) Get(name string) (*Plugin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plugins[name]
	return p, ok
}

// Remove deletes a plugin by name, reporting whether it existed.
func (c *Collection) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.plugins[name]
	delete(c.plugins, name)
	return ok
}

// All returns the registered plugins sorted by name.
func (c *Collection) All() []*Plugin {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.plugins))
	for n := range c.plugins {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Plugin, 0, len(names))
	for _, n := range names {
		out = append(out, c.plugins[n])
	}
	return out
}

// ResolveFunction looks up a function by plugin and function name.
func (c *Collection) ResolveFunction(pluginName, functionName string) (core.Function, error) {
	p, ok := c.Get(pluginName)
	if !ok {
		return nil, core.NewKernelError(core.ErrCodePluginNotFound, fmt.Sprintf("plugin %q not registered", pluginName))
	}
	fn, ok := p.Function(functionName)
	if !ok {
		return nil, core.NewKernelError(core.ErrCodeFunctionNotFound, fmt.Sprintf("function %q not found in plugin %q", functionName, pluginName))
	}
	return fn, nil
}
