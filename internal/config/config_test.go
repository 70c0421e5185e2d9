// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "migrator", cfg.Logger().ServiceName)
	assert.Equal(t, 25, cfg.Workflow().MaxAgentIterations)
	assert.False(t, cfg.Workflow().EnableDiagnostics)
	assert.Equal(t, 16, cfg.Cache().HashLength)
	assert.Equal(t, 10*time.Second, cfg.DependencyLookup().Timeout)
	assert.False(t, cfg.SolutionServer().Enabled)

	m, err := cfg.LLM().ModelFor("fix")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, m.Provider)
	assert.Equal(t, 5*time.Minute, m.APITimeout)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Valid defaults", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Empty workspace root", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.SetWorkspaceRoot("")
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "workspace.root")
	})

	t.Run("Non-positive agent iterations", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.WorkflowCfg.MaxAgentIterations = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_agent_iterations")
	})

	t.Run("Enabled solution server without url", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.SolutionServerCfg.Enabled = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "solution_server")
	})

	t.Run("Node mapped to an unknown model", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.LLMCfg.Nodes = map[string]string{"planner": "missing"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `model "missing"`)
	})
}

func TestLLMConfig_ModelFor(t *testing.T) {
	l := LLMConfig{
		DefaultModel: "fast",
		Nodes:        map[string]string{"planner": "smart"},
		Models: map[string]LLMModelConfig{
			"fast":  {Provider: ProviderOllama, Model: "llama3"},
			"smart": {Provider: ProviderOpenAI, Model: "gpt-4o"},
		},
	}

	m, err := l.ModelFor("planner")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.Model)

	m, err = l.ModelFor("fix")
	require.NoError(t, err)
	assert.Equal(t, "llama3", m.Model)
}

// -- Loading Tests --

func TestNewConfigFromViper_YAMLAndEnv(t *testing.T) {
	t.Setenv("MIGRATOR_SOLUTION_SERVER_TOKEN", "secret-token")

	yamlConfig := []byte(`
workflow:
  enable_diagnostics: true
  max_agent_iterations: 7
solution_server:
  enabled: true
  url: http://localhost:8000/mcp
llm:
  default_model: local
  models:
    local:
      provider: ollama
      model: qwen2.5-coder
      tool_calls: false
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.True(t, cfg.Workflow().EnableDiagnostics)
	assert.Equal(t, 7, cfg.Workflow().MaxAgentIterations)
	assert.Equal(t, "secret-token", cfg.SolutionServer().Token)

	m, err := cfg.LLM().ModelFor("fix")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, m.Provider)
	require.NotNil(t, m.ToolCalls)
	assert.False(t, *m.ToolCalls)
	assert.Nil(t, m.StreamingToolCalls)
}

func TestSetters(t *testing.T) {
	var cfg Interface = NewDefaultConfig()
	cfg.SetWorkspaceRoot("/tmp/project")
	cfg.SetEnableDiagnostics(true)
	cfg.SetCacheEnabled(true)

	assert.Equal(t, "/tmp/project", cfg.Workspace().Root)
	assert.True(t, cfg.Workflow().EnableDiagnostics)
	assert.True(t, cfg.Cache().Enabled)
}
