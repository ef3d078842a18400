package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/kernelmesh/config"
)

const sampleYAML = `
services:
  - id: chat
    provider: openai
    model: gpt-4o-mini
    apiKey: ${TEST_OPENAI_KEY}
    temperature: 0.2
  - id: claude
    provider: anthropic
    apiKey: ${TEST_ANTHROPIC_KEY:-fallback-key}
agents:
  - name: assistant
    service: chat
    instructions: You are a helpful assistant.
    plugins: [math]
    maxIterations: 5
    stream: true
processes:
  - name: onboarding
    maxParallelSteps: 4
    stateStore:
      type: redis
      addr: ${TEST_REDIS_ADDR:-localhost:6379}
      ttl: 24h
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")

	cfg, err := config.Parse([]byte(sampleYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Services, 2)
	svc, ok := cfg.Service("chat")
	require.True(t, ok)
	assert.Equal(t, "openai", svc.Provider)
	assert.Equal(t, "gpt-4o-mini", svc.Model)
	assert.Equal(t, "sk-test-123", svc.APIKey)
	require.NotNil(t, svc.Temperature)
	assert.Equal(t, 0.2, *svc.Temperature)

	// Unset variable with a default falls back.
	claude, ok := cfg.Service("claude")
	require.True(t, ok)
	assert.Equal(t, "fallback-key", claude.APIKey)

	agent, ok := cfg.Agent("assistant")
	require.True(t, ok)
	assert.Equal(t, "chat", agent.Service)
	assert.Equal(t, []string{"math"}, agent.Plugins)
	assert.Equal(t, 5, agent.MaxIterations)
	assert.True(t, agent.Stream)

	proc, ok := cfg.Process("onboarding")
	require.True(t, ok)
	assert.Equal(t, 4, proc.MaxParallelSteps)
	assert.Equal(t, config.StateStoreRedis, proc.StateStore.Type)
	assert.Equal(t, "localhost:6379", proc.StateStore.Addr)
	assert.Equal(t, 24*time.Hour, proc.StateStore.TTL.Std())
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-file")
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	svc, ok := cfg.Service("chat")
	require.True(t, ok)
	assert.Equal(t, "sk-file", svc.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_CFG_VAR", "value")

	assert.Equal(t, "value", config.ExpandEnv("${TEST_CFG_VAR}"))
	assert.Equal(t, "value", config.ExpandEnv("${TEST_CFG_VAR:-other}"))
	assert.Equal(t, "other", config.ExpandEnv("${TEST_CFG_UNSET:-other}"))
	assert.Equal(t, "", config.ExpandEnv("${TEST_CFG_UNSET}"))
	assert.Equal(t, "plain", config.ExpandEnv("plain"))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{
			"duplicate service",
			config.Config{Services: []config.ServiceConfig{
				{ID: "a", Provider: "openai"},
				{ID: "a", Provider: "openai"},
			}},
			"duplicate service id",
		},
		{
			"unknown provider",
			config.Config{Services: []config.ServiceConfig{{ID: "a", Provider: "mystery"}}},
			"unknown provider",
		},
		{
			"agent references unknown service",
			config.Config{
				Services: []config.ServiceConfig{{ID: "a", Provider: "openai"}},
				Agents:   []config.AgentConfig{{Name: "bot", Service: "b"}},
			},
			"unknown service",
		},
		{
			"agent missing service",
			config.Config{Agents: []config.AgentConfig{{Name: "bot"}}},
			"missing service",
		},
		{
			"redis store without addr",
			config.Config{Processes: []config.ProcessConfig{
				{Name: "p", StateStore: config.StateStoreConfig{Type: "redis"}},
			}},
			"requires addr",
		},
		{
			"unknown state store type",
			config.Config{Processes: []config.ProcessConfig{
				{Name: "p", StateStore: config.StateStoreConfig{Type: "etcd"}},
			}},
			"unknown state store",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
