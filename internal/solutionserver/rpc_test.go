package solutionserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

// fakeServer answers tools/call requests from a table of canned results.
type fakeServer struct {
	t       *testing.T
	mu      sync.Mutex
	results map[string]string
	calls   []rpcRequest
	auth    []string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req rpcRequest
	assert.NoError(f.t, json.Unmarshal(body, &req))

	var raw struct {
		Params struct {
			Name string `json:"name"`
		} `json:"params"`
	}
	assert.NoError(f.t, json.Unmarshal(body, &raw))

	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	text, ok := f.results[raw.Params.Name]
	f.mu.Unlock()

	if !ok {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"unknown tool"}}`, req.ID)
		return
	}
	quoted, _ := json.Marshal(text)
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"content":[{"type":"text","text":%s}]}}`, req.ID, quoted)
}

func (f *fakeServer) snapshot() ([]rpcRequest, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rpcRequest(nil), f.calls...), append([]string(nil), f.auth...)
}

func fastBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
}

func setupRPC(t *testing.T, results map[string]string) (*RPCClient, *fakeServer) {
	t.Helper()
	fake := &fakeServer{t: t, results: results}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return NewRPCClient(server.URL, time.Second, zaptest.NewLogger(t),
		WithBackOff(fastBackOff), WithTokenProvider(StaticToken("secret"))), fake
}

func TestRPCClient_TypedOperations(t *testing.T) {
	t.Parallel()
	client, fake := setupRPC(t, map[string]string{
		ToolGetBestHint:             `{"hint":"Use jakarta.jms","hint_id":7}`,
		ToolCreateIncident:          `11`,
		ToolCreateMultipleIncidents: `{"incident_ids":[1,2],"created_count":2,"failed_count":0}`,
		ToolCreateSolution:          `42`,
		ToolAcceptFile:              ``,
		ToolRejectFile:              ``,
	})
	ctx := context.Background()

	hint, err := client.GetBestHint(ctx, "eap8", "javax-to-jakarta")
	require.NoError(t, err)
	require.NotNil(t, hint)
	assert.Equal(t, schemas.Hint{ID: 7, Text: "Use jakarta.jms"}, *hint)

	id, err := client.CreateIncident(ctx, schemas.Incident{URI: "Foo.java"})
	require.NoError(t, err)
	assert.Equal(t, 11, id)

	batch, err := client.CreateMultipleIncidents(ctx, []schemas.Incident{{URI: "a"}, {URI: "b"}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, batch.IDs)

	id, err = client.CreateSolution(ctx, schemas.Solution{IncidentIDs: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	require.NoError(t, client.AcceptFile(ctx, "Foo.java", "class Foo {}"))
	require.NoError(t, client.RejectFile(ctx, "Foo.java"))

	calls, auth := fake.snapshot()
	require.Len(t, calls, 6)
	assert.Equal(t, "tools/call", calls[0].Method)
	assert.Equal(t, "2.0", calls[0].JSONRPC)
	assert.NotEqual(t, calls[0].ID, calls[1].ID)
	assert.Equal(t, "Bearer secret", auth[0])
}

func TestRPCClient_EmptyHintIsNone(t *testing.T) {
	t.Parallel()
	client, _ := setupRPC(t, map[string]string{ToolGetBestHint: `null`})
	hint, err := client.GetBestHint(context.Background(), "r", "v")
	require.NoError(t, err)
	assert.Nil(t, hint)
}

func TestRPCClient_RPCErrorsAreNotRetried(t *testing.T) {
	t.Parallel()
	client, fake := setupRPC(t, map[string]string{})
	_, err := client.CreateIncident(context.Background(), schemas.Incident{})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
	calls, _ := fake.snapshot()
	assert.Len(t, calls, 1)
}

func TestRPCClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"5"}]}}`)
	}))
	t.Cleanup(server.Close)
	client := NewRPCClient(server.URL, time.Second, zaptest.NewLogger(t), WithBackOff(fastBackOff))

	id, err := client.CreateSolution(context.Background(), schemas.Solution{})
	require.NoError(t, err)
	assert.Equal(t, 5, id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRPCClient_ToolErrorResult(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"incident not found"}]}}`)
	}))
	t.Cleanup(server.Close)
	client := NewRPCClient(server.URL, time.Second, zaptest.NewLogger(t), WithBackOff(fastBackOff))

	err := client.RejectFile(context.Background(), "x")
	assert.ErrorContains(t, err, "incident not found")
}

func TestDegrading_ReturnsSentinelsOnFailure(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)
	logger := zaptest.NewLogger(t)
	client := NewDegrading(NewRPCClient(server.URL, time.Second, logger, WithBackOff(fastBackOff)), logger)
	ctx := context.Background()

	_, ok := client.GetBestHint(ctx, "r", "v")
	assert.False(t, ok)
	assert.Equal(t, FailedID, client.CreateIncident(ctx, schemas.Incident{}))
	assert.Equal(t, schemas.IncidentBatch{FailedCount: 2}, client.CreateMultipleIncidents(ctx, make([]schemas.Incident, 2)))
	assert.Equal(t, FailedID, client.CreateSolution(ctx, schemas.Solution{}))
	assert.False(t, client.AcceptFile(ctx, "a", "b"))
	assert.False(t, client.RejectFile(ctx, "a"))
}

func TestNew_SelectsImplementation(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	disabled := New(config.SolutionServerConfig{Enabled: false, URL: "http://x"}, logger)
	assert.False(t, disabled.Enabled())
	_, ok := disabled.GetBestHint(ctx, "r", "v")
	assert.False(t, ok)
	assert.Equal(t, FailedID, disabled.CreateIncident(ctx, schemas.Incident{}))
	assert.Equal(t, FailedID, disabled.CreateSolution(ctx, schemas.Solution{}))
	assert.Equal(t, 3, disabled.CreateMultipleIncidents(ctx, make([]schemas.Incident, 3)).FailedCount)

	enabled := New(config.SolutionServerConfig{Enabled: true, URL: "http://127.0.0.1:1", Token: "t"}, logger)
	assert.True(t, enabled.Enabled())
	assert.IsType(t, &Degrading{}, enabled)
}
