// internal/server/server_test.go
package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/agent"
	"github.com/xkilldash9x/migrator/internal/server"
	"github.com/xkilldash9x/migrator/internal/workflow"
)

// fakeRunner blocks each run until release is closed and records resolutions.
type fakeRunner struct {
	bus     *workflow.Bus
	release chan struct{}

	mu       sync.Mutex
	resolved []schemas.InteractionResolution
	inputs   []agent.WorkflowInput
}

func newFakeRunner(t *testing.T) *fakeRunner {
	return &fakeRunner{
		bus:     workflow.NewBus(zaptest.NewLogger(t), 16),
		release: make(chan struct{}),
	}
}

func (f *fakeRunner) Run(ctx context.Context, in agent.WorkflowInput) (*agent.Result, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	select {
	case <-f.release:
		return &agent.Result{RunID: in.RunID, Staged: []string{"pom.xml"}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeRunner) ResolveUserInteraction(res schemas.InteractionResolution) error {
	if res.ID == "missing" {
		return agent.ErrUnknownInteraction
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, res)
	return nil
}

func (f *fakeRunner) Subscribe() (<-chan schemas.WorkflowMessage, func()) {
	return f.bus.Subscribe()
}

func (f *fakeRunner) resolutions() []schemas.InteractionResolution {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schemas.InteractionResolution(nil), f.resolved...)
}

func setupServer(t *testing.T) (*fakeRunner, *server.Server, *httptest.Server) {
	t.Helper()
	runner := newFakeRunner(t)
	srv := server.New("127.0.0.1:0", runner, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		runner.bus.Shutdown()
	})
	return runner, srv, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getRun(t *testing.T, base, id string) (int, server.RunStatus) {
	t.Helper()
	resp, err := http.Get(base + "/api/v1/runs/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	var status server.RunStatus
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	}
	return resp.StatusCode, status
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	_, _, ts := setupServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	_, _, ts := setupServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartRun(t *testing.T) {
	t.Parallel()

	t.Run("RejectsConcurrentRuns", func(t *testing.T) {
		t.Parallel()
		runner, _, ts := setupServer(t)

		resp := postJSON(t, ts.URL+"/api/v1/runs", agent.WorkflowInput{RunID: "run-1"})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		var started server.RunStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
		assert.Equal(t, "run-1", started.RunID)
		assert.Equal(t, server.StateRunning, started.State)

		second := postJSON(t, ts.URL+"/api/v1/runs", agent.WorkflowInput{RunID: "run-2"})
		assert.Equal(t, http.StatusConflict, second.StatusCode)

		close(runner.release)
		require.Eventually(t, func() bool {
			code, status := getRun(t, ts.URL, "run-1")
			return code == http.StatusOK && status.State == server.StateSucceeded
		}, 2*time.Second, 10*time.Millisecond)

		_, status := getRun(t, ts.URL, "run-1")
		require.NotNil(t, status.Result)
		assert.Equal(t, []string{"pom.xml"}, status.Result.Staged)
	})

	t.Run("AssignsRunID", func(t *testing.T) {
		t.Parallel()
		runner, _, ts := setupServer(t)
		close(runner.release)

		resp := postJSON(t, ts.URL+"/api/v1/runs", agent.WorkflowInput{})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		var started server.RunStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
		assert.NotEmpty(t, started.RunID)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		t.Parallel()
		_, _, ts := setupServer(t)

		resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("CanceledOnClose", func(t *testing.T) {
		t.Parallel()
		runner := newFakeRunner(t)
		srv := server.New("127.0.0.1:0", runner, zaptest.NewLogger(t))
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		resp := postJSON(t, ts.URL+"/api/v1/runs", agent.WorkflowInput{RunID: "run-1"})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		srv.Close()
		code, status := getRun(t, ts.URL, "run-1")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, server.StateFailed, status.State)
		assert.Contains(t, status.Error, context.Canceled.Error())

		again := postJSON(t, ts.URL+"/api/v1/runs", agent.WorkflowInput{RunID: "run-2"})
		assert.Equal(t, http.StatusServiceUnavailable, again.StatusCode)
	})
}

func TestGetRun_NotFound(t *testing.T) {
	t.Parallel()
	_, _, ts := setupServer(t)

	code, _ := getRun(t, ts.URL, "nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestResolveInteraction(t *testing.T) {
	t.Parallel()
	runner, _, ts := setupServer(t)

	yes := true
	resp := postJSON(t, ts.URL+"/api/v1/interactions", schemas.InteractionResolution{
		ID:       "msg-1",
		Response: schemas.UserInteractionResponse{YesNo: &yes},
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Len(t, runner.resolutions(), 1)
	assert.True(t, runner.resolutions()[0].Response.Accepted())

	missing := postJSON(t, ts.URL+"/api/v1/interactions", schemas.InteractionResolution{ID: "missing"})
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestEvents_RelaysMessagesAndResolutions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := newFakeRunner(t)
	srv := server.New("127.0.0.1:0", runner, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	defer func() {
		ts.Close()
		srv.Close()
		runner.bus.Shutdown()
	}()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/v1/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	msg := schemas.NewWorkflowMessage(schemas.MessageError, schemas.ErrorEvent{
		Code:    schemas.ErrCodeLLMCall,
		Message: "model unavailable",
	})
	require.NoError(t, runner.bus.Publish(context.Background(), msg))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var received struct {
		ID   string             `json:"id"`
		Type string             `json:"type"`
		Data schemas.ErrorEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&received))
	assert.Equal(t, msg.ID, received.ID)
	assert.Equal(t, string(schemas.MessageError), received.Type)
	assert.Equal(t, "model unavailable", received.Data.Message)

	require.NoError(t, conn.WriteJSON(schemas.InteractionResolution{ID: msg.ID, Reject: true, Reason: "no"}))
	require.Eventually(t, func() bool {
		return len(runner.resolutions()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, runner.resolutions()[0].Reject)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
}
