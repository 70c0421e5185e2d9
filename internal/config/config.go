// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	LLM() LLMConfig
	Workflow() WorkflowConfig
	Cache() CacheConfig
	SolutionServer() SolutionServerConfig
	DependencyLookup() DependencyLookupConfig
	Workspace() WorkspaceConfig
	Server() ServerConfig

	SetWorkspaceRoot(root string)
	SetEnableDiagnostics(enabled bool)
	SetCacheEnabled(enabled bool)
}

// Config holds the entire application configuration.
// Sections are reached through the Interface getters.
type Config struct {
	LoggerCfg           LoggerConfig           `mapstructure:"logger" yaml:"logger"`
	LLMCfg              LLMConfig              `mapstructure:"llm" yaml:"llm"`
	WorkflowCfg         WorkflowConfig         `mapstructure:"workflow" yaml:"workflow"`
	CacheCfg            CacheConfig            `mapstructure:"cache" yaml:"cache"`
	SolutionServerCfg   SolutionServerConfig   `mapstructure:"solution_server" yaml:"solution_server"`
	DependencyLookupCfg DependencyLookupConfig `mapstructure:"dependency_lookup" yaml:"dependency_lookup"`
	WorkspaceCfg        WorkspaceConfig        `mapstructure:"workspace" yaml:"workspace"`
	ServerCfg           ServerConfig           `mapstructure:"server" yaml:"server"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig                     { return c.LoggerCfg }
func (c *Config) LLM() LLMConfig                           { return c.LLMCfg }
func (c *Config) Workflow() WorkflowConfig                 { return c.WorkflowCfg }
func (c *Config) Cache() CacheConfig                       { return c.CacheCfg }
func (c *Config) SolutionServer() SolutionServerConfig     { return c.SolutionServerCfg }
func (c *Config) DependencyLookup() DependencyLookupConfig { return c.DependencyLookupCfg }
func (c *Config) Workspace() WorkspaceConfig               { return c.WorkspaceCfg }
func (c *Config) Server() ServerConfig                     { return c.ServerCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetWorkspaceRoot(root string)      { c.WorkspaceCfg.Root = root }
func (c *Config) SetEnableDiagnostics(enabled bool) { c.WorkflowCfg.EnableDiagnostics = enabled }
func (c *Config) SetCacheEnabled(enabled bool)      { c.CacheCfg.Enabled = enabled }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
	ProviderOllama LLMProvider = "ollama"
)

// LLMConfig configures which model serves each workflow node.
type LLMConfig struct {
	DefaultModel string `mapstructure:"default_model" yaml:"default_model"`
	// Nodes maps a node name (fix, planner, summarize, agent) to a key of Models.
	Nodes  map[string]string         `mapstructure:"nodes" yaml:"nodes"`
	Models map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// ModelFor resolves the model configuration serving a node, falling back to the default model.
func (l LLMConfig) ModelFor(node string) (LLMModelConfig, error) {
	name := l.DefaultModel
	if override, ok := l.Nodes[node]; ok && override != "" {
		name = override
	}
	m, ok := l.Models[name]
	if !ok {
		return LLMModelConfig{}, fmt.Errorf("model %q (node %q) is not configured", name, node)
	}
	return m, nil
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// Capability overrides. Nil keeps the provider's built-in answer.
	ToolCalls          *bool `mapstructure:"tool_calls" yaml:"tool_calls"`
	StreamingToolCalls *bool `mapstructure:"streaming_tool_calls" yaml:"streaming_tool_calls"`
}

// WorkflowConfig controls the migration workflow itself.
type WorkflowConfig struct {
	EnableDiagnostics   bool   `mapstructure:"enable_diagnostics" yaml:"enable_diagnostics"`
	InteractiveWait     bool   `mapstructure:"interactive_wait" yaml:"interactive_wait"`
	MaxAgentIterations  int    `mapstructure:"max_agent_iterations" yaml:"max_agent_iterations"`
	ProgrammingLanguage string `mapstructure:"programming_language" yaml:"programming_language"`
	MigrationHint       string `mapstructure:"migration_hint" yaml:"migration_hint"`
}

// CacheConfig controls the on-disk replay cache.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir        string `mapstructure:"dir" yaml:"dir"`
	HashLength int    `mapstructure:"hash_length" yaml:"hash_length"`
	LLM        bool   `mapstructure:"llm" yaml:"llm"`
	Tools      bool   `mapstructure:"tools" yaml:"tools"`
}

// SolutionServerConfig locates the remote hint/solution registry.
type SolutionServerConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	URL     string        `mapstructure:"url" yaml:"url"`
	Token   string        `mapstructure:"token" yaml:"token"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DependencyLookupConfig configures the package-registry search used by the dependency agent.
type DependencyLookupConfig struct {
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int           `mapstructure:"burst" yaml:"burst"`
}

// WorkspaceConfig points at the project being migrated.
type WorkspaceConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// ServerConfig configures the IDE relay server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "migrator")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- LLM --
	v.SetDefault("llm.default_model", "default")
	v.SetDefault("llm.models.default.provider", string(ProviderOpenAI))
	v.SetDefault("llm.models.default.model", "gpt-4o")
	v.SetDefault("llm.models.default.api_timeout", "5m")
	v.SetDefault("llm.models.default.temperature", 0.1)

	// -- Workflow --
	v.SetDefault("workflow.enable_diagnostics", false)
	v.SetDefault("workflow.interactive_wait", true)
	v.SetDefault("workflow.max_agent_iterations", 25)
	v.SetDefault("workflow.programming_language", "Java")

	// -- Cache --
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.dir", ".migrator/cache")
	v.SetDefault("cache.hash_length", 16)
	v.SetDefault("cache.llm", true)
	v.SetDefault("cache.tools", true)

	// -- Solution Server --
	v.SetDefault("solution_server.enabled", false)
	v.SetDefault("solution_server.timeout", "30s")

	// -- Dependency Lookup --
	v.SetDefault("dependency_lookup.endpoint", "https://search.maven.org/solrsearch/select")
	v.SetDefault("dependency_lookup.timeout", "10s")
	v.SetDefault("dependency_lookup.rate_limit", 2.0)
	v.SetDefault("dependency_lookup.burst", 1)

	// -- Workspace / Server --
	v.SetDefault("workspace.root", ".")
	v.SetDefault("server.addr", "127.0.0.1:7070")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("solution_server.token", "MIGRATOR_SOLUTION_SERVER_TOKEN")
	v.BindEnv("llm.models.default.api_key", "MIGRATOR_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the vendor variables for the default model's key.
	if m, ok := cfg.LLMCfg.Models[cfg.LLMCfg.DefaultModel]; ok && m.APIKey == "" {
		m.APIKey = apiKeyFromEnv(m.Provider)
		cfg.LLMCfg.Models[cfg.LLMCfg.DefaultModel] = m
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func apiKeyFromEnv(p LLMProvider) string {
	switch p {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	default:
		return ""
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.WorkspaceCfg.Root == "" {
		return errors.New("workspace.root is a required configuration field")
	}
	if c.WorkflowCfg.MaxAgentIterations <= 0 {
		return errors.New("workflow.max_agent_iterations must be a positive integer")
	}
	if c.CacheCfg.Enabled && c.CacheCfg.Dir == "" {
		return errors.New("cache.dir is required when the cache is enabled")
	}
	if c.CacheCfg.HashLength <= 0 || c.CacheCfg.HashLength > 64 {
		return errors.New("cache.hash_length must be between 1 and 64")
	}
	if err := c.SolutionServerCfg.Validate(); err != nil {
		return fmt.Errorf("solution_server configuration invalid: %w", err)
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the solution server configuration.
func (s *SolutionServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.URL == "" {
		return errors.New("url is required when the solution server is enabled")
	}
	return nil
}

// Validate checks that every node resolves to a configured model.
func (l *LLMConfig) Validate() error {
	if _, err := l.ModelFor(""); err != nil {
		return err
	}
	for node := range l.Nodes {
		m, err := l.ModelFor(node)
		if err != nil {
			return err
		}
		switch m.Provider {
		case ProviderOpenAI, ProviderGemini, ProviderOllama:
		default:
			return fmt.Errorf("unsupported provider %q for node %q", m.Provider, node)
		}
	}
	return nil
}
