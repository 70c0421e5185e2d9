// internal/llmclient/ollama_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

// errStopStream aborts a chat callback when the consumer stops iterating.
var errStopStream = errors.New("stream consumer stopped")

// OllamaClient serves a local Ollama daemon. Tool calls go through the text protocol.
type OllamaClient struct {
	client *ollama.Client
	logger *zap.Logger
	config config.LLMModelConfig
}

// NewOllamaClient connects to cfg.Endpoint, or to OLLAMA_HOST when unset.
func NewOllamaClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("Ollama model name is required")
	}
	var client *ollama.Client
	if cfg.Endpoint != "" {
		base, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid Ollama endpoint %q: %w", cfg.Endpoint, err)
		}
		client = ollama.NewClient(base, &http.Client{Timeout: cfg.APITimeout})
	} else {
		var err error
		client, err = ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
	}
	return &OllamaClient{client: client, logger: logger.Named("llm_client.ollama"), config: cfg}, nil
}

func (c *OllamaClient) request(messages []schemas.Message, opts schemas.CallOptions, stream bool) *ollama.ChatRequest {
	msgs := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		if m.Role == schemas.RoleTool {
			role = string(schemas.RoleUser)
		}
		msgs = append(msgs, ollama.Message{Role: role, Content: m.Content})
	}
	options := map[string]any{"temperature": c.config.Temperature}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}
	if c.config.TopP > 0 {
		options["top_p"] = c.config.TopP
	}
	if c.config.TopK > 0 {
		options["top_k"] = c.config.TopK
	}
	if n := max(opts.MaxTokens, c.config.MaxTokens); n > 0 {
		options["num_predict"] = n
	}
	if len(opts.Stop) > 0 {
		options["stop"] = opts.Stop
	}
	return &ollama.ChatRequest{
		Model:    c.config.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options,
	}
}

// Stream relays chat chunks from the daemon.
func (c *OllamaClient) Stream(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) iter.Seq2[schemas.MessageChunk, error] {
	return func(yield func(schemas.MessageChunk, error) bool) {
		err := c.client.Chat(ctx, c.request(messages, opts, true), func(res ollama.ChatResponse) error {
			if res.Message.Content == "" {
				return nil
			}
			if !yield(schemas.MessageChunk{Content: res.Message.Content}, nil) {
				return errStopStream
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopStream) {
			yield(schemas.MessageChunk{}, fmt.Errorf("ollama chat failed: %w", err))
		}
	}
}

// Invoke waits for the complete response.
func (c *OllamaClient) Invoke(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) (schemas.Message, error) {
	var content strings.Builder
	err := c.client.Chat(ctx, c.request(messages, opts, false), func(res ollama.ChatResponse) error {
		content.WriteString(res.Message.Content)
		return nil
	})
	if err != nil {
		return schemas.Message{}, fmt.Errorf("ollama chat failed: %w", err)
	}
	return schemas.Message{Role: schemas.RoleAssistant, Content: content.String()}, nil
}

// BindTools returns the receiver; tools are described in the prompt instead.
func (c *OllamaClient) BindTools([]schemas.ToolDefinition) schemas.ModelProvider { return c }

func (c *OllamaClient) ToolCallsSupported() bool            { return false }
func (c *OllamaClient) ToolCallsSupportedInStreaming() bool { return false }
