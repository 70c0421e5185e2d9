// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

// NewClient creates the provider for one model configuration.
func NewClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.ModelProvider, error) {
	var (
		provider schemas.ModelProvider
		err      error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		provider, err = NewGeminiClient(cfg, logger)
	case config.ProviderOpenAI:
		provider, err = NewOpenAIClient(cfg, logger)
	case config.ProviderOllama:
		provider, err = NewOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI, config.ProviderOllama)
	}
	if err != nil {
		return nil, err
	}
	return WithCapabilities(provider, cfg.ToolCalls, cfg.StreamingToolCalls), nil
}
