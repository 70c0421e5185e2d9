package llmclient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

// getValidLLMConfig returns a valid LLMModelConfig for testing purposes.
func getValidLLMConfig(provider config.LLMProvider) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:    provider,
		APIKey:      "test-api-key",
		Model:       "test-model",
		APITimeout:  5 * time.Second,
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        50,
	}
}

func conversation() []schemas.Message {
	return []schemas.Message{
		schemas.SystemMessage("You migrate Java code."),
		schemas.UserMessage("Fix Foo.java"),
	}
}

// drain collects a stream into its concatenated content and chunk list.
func drain(t *testing.T, p schemas.ModelProvider, msgs []schemas.Message) (string, []schemas.MessageChunk, error) {
	t.Helper()
	var (
		b      strings.Builder
		chunks []schemas.MessageChunk
	)
	for c, err := range p.Stream(context.Background(), msgs, schemas.CallOptions{}) {
		if err != nil {
			return b.String(), chunks, err
		}
		b.WriteString(c.Content)
		chunks = append(chunks, c)
	}
	return b.String(), chunks, nil
}

func boolPtr(b bool) *bool { return &b }
