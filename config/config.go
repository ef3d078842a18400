// Package config loads declarative kernel configuration from YAML files.
// A configuration file names the AI services and agents an application wants
// to assemble; environment references like ${OPENAI_API_KEY} are expanded
// before parsing so secrets stay out of the file itself. The package only
// describes the desired setup, wiring the concrete connectors stays with the
// application.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported service providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// ServiceConfig describes a single AI service registration.
type ServiceConfig struct {
	// ID is the name the service is registered under in the kernel.
	ID string `yaml:"id"`
	// Provider selects the connector, e.g. "openai" or "anthropic".
	Provider string `yaml:"provider"`
	// Model is the provider-specific model identifier.
	Model string `yaml:"model,omitempty"`
	// APIKey is the credential for the provider, typically an ${ENV} reference.
	APIKey string `yaml:"apiKey,omitempty"`
	// Temperature overrides the connector default when set.
	Temperature *float64 `yaml:"temperature,omitempty"`
	// MaxTokens overrides the connector default when set.
	MaxTokens *int `yaml:"maxTokens,omitempty"`
}

// AgentConfig describes a chat agent and the resources it uses.
type AgentConfig struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description,omitempty"`
	Instructions string `yaml:"instructions,omitempty"`
	// Service is the ID of the chat service the agent talks to.
	Service string `yaml:"service"`
	// Plugins restricts the tools exposed to the model. Empty means all.
	Plugins       []string `yaml:"plugins,omitempty"`
	MaxIterations int      `yaml:"maxIterations,omitempty"`
	Stream        bool     `yaml:"stream,omitempty"`
}

// State store backends for process checkpoints.
const (
	StateStoreMemory = "memory"
	StateStoreRedis  = "redis"
)

// Duration wraps time.Duration so YAML values like "30s" or "24h" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// StateStoreConfig selects where a process persists its checkpoints.
type StateStoreConfig struct {
	// Type is "memory" (default) or "redis".
	Type     string   `yaml:"type,omitempty"`
	Addr     string   `yaml:"addr,omitempty"`
	Password string   `yaml:"password,omitempty"`
	DB       int      `yaml:"db,omitempty"`
	Prefix   string   `yaml:"prefix,omitempty"`
	TTL      Duration `yaml:"ttl,omitempty"`
}

// ProcessConfig describes runtime settings for a process definition. The step
// graph itself is built in code; configuration covers the durable parts.
type ProcessConfig struct {
	// Name must match the process definition built with the same name.
	Name             string           `yaml:"name"`
	StateStore       StateStoreConfig `yaml:"stateStore,omitempty"`
	MaxParallelSteps int              `yaml:"maxParallelSteps,omitempty"`
}

// Config is the root of a kernel configuration file.
type Config struct {
	Services  []ServiceConfig `yaml:"services"`
	Agents    []AgentConfig   `yaml:"agents,omitempty"`
	Processes []ProcessConfig `yaml:"processes,omitempty"`
}

// Load reads a YAML configuration file, expands environment references and
// validates the result. .env files next to the working directory are loaded
// first so references can resolve against them.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes after expanding environment
// references.
func Parse(data []byte) (*Config, error) {
	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks referential integrity of the configuration.
func (c *Config) Validate() error {
	services := make(map[string]bool, len(c.Services))
	for i, svc := range c.Services {
		if svc.ID == "" {
			return fmt.Errorf("service %d: missing id", i)
		}
		if services[svc.ID] {
			return fmt.Errorf("duplicate service id %q", svc.ID)
		}
		services[svc.ID] = true

		switch svc.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		case "":
			return fmt.Errorf("service %q: missing provider", svc.ID)
		default:
			return fmt.Errorf("service %q: unknown provider %q", svc.ID, svc.Provider)
		}
	}

	agents := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent %d: missing name", i)
		}
		if agents[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		agents[a.Name] = true

		if a.Service == "" {
			return fmt.Errorf("agent %q: missing service", a.Name)
		}
		if !services[a.Service] {
			return fmt.Errorf("agent %q: unknown service %q", a.Name, a.Service)
		}
		if a.MaxIterations < 0 {
			return fmt.Errorf("agent %q: maxIterations must not be negative", a.Name)
		}
	}

	processes := make(map[string]bool, len(c.Processes))
	for i, p := range c.Processes {
		if p.Name == "" {
			return fmt.Errorf("process %d: missing name", i)
		}
		if processes[p.Name] {
			return fmt.Errorf("duplicate process name %q", p.Name)
		}
		processes[p.Name] = true

		switch p.StateStore.Type {
		case "", StateStoreMemory:
		case StateStoreRedis:
			if p.StateStore.Addr == "" {
				return fmt.Errorf("process %q: redis state store requires addr", p.Name)
			}
		default:
			return fmt.Errorf("process %q: unknown state store type %q", p.Name, p.StateStore.Type)
		}
	}
	return nil
}

// Service returns the service configuration with the given ID.
func (c *Config) Service(id string) (ServiceConfig, bool) {
	for _, svc := range c.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return ServiceConfig{}, false
}

// Agent returns the agent configuration with the given name.
func (c *Config) Agent(name string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// Process returns the process configuration with the given name.
func (c *Config) Process(name string) (ProcessConfig, bool) {
	for _, p := range c.Processes {
		if p.Name == name {
			return p, true
		}
	}
	return ProcessConfig{}, false
}
