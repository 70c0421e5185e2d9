package solutionserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
)

// Tool names exposed by the solution server.
const (
	ToolGetBestHint             = "get_best_hint"
	ToolCreateIncident          = "create_incident"
	ToolCreateMultipleIncidents = "create_multiple_incidents"
	ToolCreateSolution          = "create_solution"
	ToolAcceptFile              = "accept_file"
	ToolRejectFile              = "reject_file"
)

// TokenProvider supplies a bearer token for each request. Refresh is the
// provider's concern.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider that never changes.
type StaticToken string

// Token returns the token.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// RPCError is an error object returned by the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("solution server error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int64      `json:"id"`
	Method  string     `json:"method"`
	Params  toolParams `json:"params"`
}

type toolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Result  *toolResult `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func (r *toolResult) text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "" || c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// RPCClient issues JSON-RPC 2.0 "tools/call" requests over HTTP.
type RPCClient struct {
	url        string
	httpClient *http.Client
	tokens     TokenProvider
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
	nextID     atomic.Int64
}

// RPCOption configures an RPCClient.
type RPCOption func(*RPCClient)

// WithTokenProvider authenticates requests.
func WithTokenProvider(p TokenProvider) RPCOption {
	return func(c *RPCClient) { c.tokens = p }
}

// WithBackOff replaces the retry policy.
func WithBackOff(f func() backoff.BackOff) RPCOption {
	return func(c *RPCClient) { c.newBackOff = f }
}

// NewRPCClient creates a client for the endpoint at url.
func NewRPCClient(url string, timeout time.Duration, logger *zap.Logger, opts ...RPCOption) *RPCClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &RPCClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("solution_server"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 30 * time.Second
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallTool invokes tool with args and decodes the text result as JSON into out.
// out may be nil. An empty result leaves out untouched.
func (c *RPCClient) CallTool(ctx context.Context, tool string, args any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "tools/call",
		Params:  toolParams{Name: tool, Arguments: args},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", tool, err)
	}

	var result *toolResult
	operation := func() error {
		res, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		result = res
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("%s failed: %w", tool, err)
	}

	text := strings.TrimSpace(result.text())
	if result.IsError {
		return fmt.Errorf("%s failed: %s", tool, text)
	}
	if out == nil || text == "" || text == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", tool, err)
	}
	return nil
}

func (c *RPCClient) post(ctx context.Context, body []byte) (*toolResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to obtain token: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Network error calling solution server, retrying.", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("solution server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	if rpcResp.Error != nil {
		return nil, backoff.Permanent(rpcResp.Error)
	}
	if rpcResp.Result == nil {
		return nil, backoff.Permanent(errors.New("response carried neither result nor error"))
	}
	return rpcResp.Result, nil
}

// -- Typed operations --

// GetBestHint returns nil when the server knows no hint for the violation.
func (c *RPCClient) GetBestHint(ctx context.Context, ruleset, violation string) (*schemas.Hint, error) {
	var hint *schemas.Hint
	err := c.CallTool(ctx, ToolGetBestHint, map[string]string{
		"ruleset_name":   ruleset,
		"violation_name": violation,
	}, &hint)
	if err != nil {
		return nil, err
	}
	if hint == nil || hint.Text == "" {
		return nil, nil
	}
	return hint, nil
}

// CreateIncident registers one incident and returns its id.
func (c *RPCClient) CreateIncident(ctx context.Context, incident schemas.Incident) (int, error) {
	var id int
	if err := c.CallTool(ctx, ToolCreateIncident, incident, &id); err != nil {
		return FailedID, err
	}
	return id, nil
}

// CreateMultipleIncidents registers incidents in one call.
func (c *RPCClient) CreateMultipleIncidents(ctx context.Context, incidents []schemas.Incident) (schemas.IncidentBatch, error) {
	var batch schemas.IncidentBatch
	err := c.CallTool(ctx, ToolCreateMultipleIncidents, map[string]any{"incidents": incidents}, &batch)
	return batch, err
}

// CreateSolution records a solution and returns its id.
func (c *RPCClient) CreateSolution(ctx context.Context, solution schemas.Solution) (int, error) {
	var id int
	if err := c.CallTool(ctx, ToolCreateSolution, solution, &id); err != nil {
		return FailedID, err
	}
	return id, nil
}

// AcceptFile reports that the human accepted content for uri.
func (c *RPCClient) AcceptFile(ctx context.Context, uri, content string) error {
	return c.CallTool(ctx, ToolAcceptFile, map[string]string{"uri": uri, "content": content}, nil)
}

// RejectFile reports that the human rejected the pending change to uri.
func (c *RPCClient) RejectFile(ctx context.Context, uri string) error {
	return c.CallTool(ctx, ToolRejectFile, map[string]string{"uri": uri}, nil)
}
