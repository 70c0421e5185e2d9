// internal/llmclient/gemini_client.go
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient talks to the Gemini REST API. Tool calls are not bound natively;
// the workflow node falls back to the text protocol.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	config     config.LLMModelConfig
}

// -- Gemini API Request/Response Structures (Internal to this file) --
type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type GeminiPart struct {
	Text string `json:"text"`
}

type GeminiSystemInstruction struct {
	Parts []GeminiPart `json:"parts"`
}

type GeminiGenerationConfig struct {
	Temperature     float32  `json:"temperature"`
	TopP            float32  `json:"topP,omitempty"`
	TopK            int      `json:"topK,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type GeminiRequestPayload struct {
	Contents          []GeminiContent          `json:"contents"`
	SystemInstruction *GeminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  GeminiGenerationConfig   `json:"generationConfig"`
}

type GeminiResponsePayload struct {
	Candidates []struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient initializes the client.
func NewGeminiClient(cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("Gemini model name is required")
	}

	baseURL := strings.TrimRight(cfg.Endpoint, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	return &GeminiClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		config:  cfg,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("llm_client.gemini"),
	}, nil
}

func (c *GeminiClient) url(method string) string {
	return fmt.Sprintf("%s/models/%s:%s", c.baseURL, c.config.Model, method)
}

// Invoke sends the conversation and returns the complete response, retrying transient failures.
func (c *GeminiClient) Invoke(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) (schemas.Message, error) {
	body, err := json.Marshal(c.buildRequestPayload(messages, opts))
	if err != nil {
		return schemas.Message{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var responseContent string

	operation := func() error {
		resp, err := c.post(ctx, c.url("generateContent"), body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var payload GeminiResponsePayload
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		text, err := candidateText(payload)
		if err != nil {
			return err
		}

		c.logger.Info("LLM generation complete (Gemini)",
			zap.Int("prompt_tokens", payload.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", payload.UsageMetadata.CandidatesTokenCount),
			zap.Int("total_tokens", payload.UsageMetadata.TotalTokenCount),
		)
		responseContent = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return schemas.Message{}, err
	}
	return schemas.Message{Role: schemas.RoleAssistant, Content: responseContent}, nil
}

// Stream reads the server-sent event stream of streamGenerateContent.
func (c *GeminiClient) Stream(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) iter.Seq2[schemas.MessageChunk, error] {
	return func(yield func(schemas.MessageChunk, error) bool) {
		body, err := json.Marshal(c.buildRequestPayload(messages, opts))
		if err != nil {
			yield(schemas.MessageChunk{}, fmt.Errorf("failed to marshal request payload: %w", err))
			return
		}
		resp, err := c.post(ctx, c.url("streamGenerateContent")+"?alt=sse", body)
		if err != nil {
			yield(schemas.MessageChunk{}, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			yield(schemas.MessageChunk{}, c.handleAPIError(resp.StatusCode, respBody))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			var payload GeminiResponsePayload
			if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &payload); err != nil {
				yield(schemas.MessageChunk{}, fmt.Errorf("failed to decode stream event: %w", err))
				return
			}
			if len(payload.Candidates) == 0 {
				continue
			}
			var text strings.Builder
			for _, part := range payload.Candidates[0].Content.Parts {
				text.WriteString(part.Text)
			}
			if text.Len() == 0 {
				continue
			}
			if !yield(schemas.MessageChunk{Content: text.String()}, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(schemas.MessageChunk{}, fmt.Errorf("failed to read stream: %w", err))
		}
	}
}

// BindTools returns the receiver; tools are described in the prompt instead.
func (c *GeminiClient) BindTools([]schemas.ToolDefinition) schemas.ModelProvider { return c }

func (c *GeminiClient) ToolCallsSupported() bool            { return false }
func (c *GeminiClient) ToolCallsSupportedInStreaming() bool { return false }

func (c *GeminiClient) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("Network error during LLM request.", zap.Error(err))
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	return resp, nil
}

func candidateText(payload GeminiResponsePayload) (string, error) {
	if len(payload.Candidates) == 0 {
		return "", backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
	}
	candidate := payload.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
			return "", backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
		}
		return "", fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}

func (c *GeminiClient) buildRequestPayload(messages []schemas.Message, opts schemas.CallOptions) GeminiRequestPayload {
	genConfig := GeminiGenerationConfig{
		Temperature:     c.config.Temperature,
		TopP:            c.config.TopP,
		TopK:            c.config.TopK,
		MaxOutputTokens: c.config.MaxTokens,
		StopSequences:   opts.Stop,
	}
	if opts.Temperature != nil {
		genConfig.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		genConfig.MaxOutputTokens = opts.MaxTokens
	}

	payload := GeminiRequestPayload{GenerationConfig: genConfig}
	var system []GeminiPart
	for _, m := range messages {
		switch m.Role {
		case schemas.RoleSystem:
			system = append(system, GeminiPart{Text: m.Content})
		case schemas.RoleAssistant:
			payload.Contents = append(payload.Contents, GeminiContent{Role: "model", Parts: []GeminiPart{{Text: m.Content}}})
		default:
			payload.Contents = append(payload.Contents, GeminiContent{Role: "user", Parts: []GeminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		payload.SystemInstruction = &GeminiSystemInstruction{Parts: system}
	}
	return payload
}

func (c *GeminiClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Gemini API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("gemini API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err) // Permanent errors.
	}
}
