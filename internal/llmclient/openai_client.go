// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

// OpenAIClient serves any OpenAI compatible chat completion endpoint. It
// supports native tool calls, including in streams.
type OpenAIClient struct {
	client *openai.Client
	logger *zap.Logger
	config config.LLMModelConfig
	tools  []openai.Tool
}

// NewOpenAIClient initializes the client. Endpoint, when set, replaces the API base URL.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("OpenAI model name is required")
	}
	if cfg.APIKey == "" && cfg.Endpoint == "" {
		return nil, fmt.Errorf("OpenAI API Key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.APITimeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger.Named("llm_client.openai"),
		config: cfg,
	}, nil
}

// BindTools returns a copy advertising tools on every request.
func (c *OpenAIClient) BindTools(tools []schemas.ToolDefinition) schemas.ModelProvider {
	bound := *c
	bound.tools = make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		bound.tools = append(bound.tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return &bound
}

func (c *OpenAIClient) ToolCallsSupported() bool            { return true }
func (c *OpenAIClient) ToolCallsSupportedInStreaming() bool { return true }

// Invoke requests a complete response, retrying rate limits and server errors.
func (c *OpenAIClient) Invoke(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) (schemas.Message, error) {
	req := c.buildRequest(messages, opts, false)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var resp openai.ChatCompletionResponse
	operation := func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("openai API returned no choices"))
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return schemas.Message{}, err
	}

	c.logger.Info("LLM generation complete (OpenAI)",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return fromOpenAIMessage(resp.Choices[0].Message, c.logger), nil
}

// Stream yields content and tool call deltas as they arrive.
func (c *OpenAIClient) Stream(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) iter.Seq2[schemas.MessageChunk, error] {
	return func(yield func(schemas.MessageChunk, error) bool) {
		stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(messages, opts, true))
		if err != nil {
			yield(schemas.MessageChunk{}, fmt.Errorf("failed to open completion stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(schemas.MessageChunk{}, fmt.Errorf("completion stream failed: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			chunk := schemas.MessageChunk{Content: delta.Content}
			for _, tc := range delta.ToolCalls {
				index := 0
				if tc.Index != nil {
					index = *tc.Index
				}
				chunk.ToolCallChunks = append(chunk.ToolCallChunks, schemas.ToolCallChunk{
					Index:     index,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					ArgsDelta: tc.Function.Arguments,
				})
			}
			if chunk.Content == "" && len(chunk.ToolCallChunks) == 0 {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func (c *OpenAIClient) buildRequest(messages []schemas.Message, opts schemas.CallOptions, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
		MaxTokens:   c.config.MaxTokens,
		Stop:        opts.Stop,
		Stream:      stream,
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if len(c.tools) > 0 {
		req.Tools = c.tools
	}
	return req
}

func toOpenAIMessages(messages []schemas.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == schemas.RoleTool {
			msg.Name = m.Name
		}
		for _, call := range m.ToolCalls {
			args, err := json.Marshal(call.Args)
			if err != nil {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(args),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage, logger *zap.Logger) schemas.Message {
	msg := schemas.Message{Role: schemas.RoleAssistant, Content: m.Content}
	for _, call := range m.ToolCalls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				logger.Warn("Tool call carried malformed arguments.", zap.String("tool", call.Function.Name), zap.Error(err))
				args = map[string]any{}
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, schemas.ToolCall{ID: call.ID, Name: call.Function.Name, Args: args})
	}
	return msg
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return err
		}
		return backoff.Permanent(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= 400 && reqErr.HTTPStatusCode < 500 && reqErr.HTTPStatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}
