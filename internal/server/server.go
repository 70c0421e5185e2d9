// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/agent"
)

// Runner is the workflow surface the server exposes. *agent.Workflow
// implements it.
type Runner interface {
	Run(ctx context.Context, in agent.WorkflowInput) (*agent.Result, error)
	ResolveUserInteraction(res schemas.InteractionResolution) error
	Subscribe() (<-chan schemas.WorkflowMessage, func())
}

// RunStatus reports the state of a run started over HTTP.
type RunStatus struct {
	RunID  string        `json:"run_id"`
	State  string        `json:"state"`
	Result *agent.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Run states.
const (
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// Server relays workflow messages to IDE clients over websockets and accepts
// runs and interaction resolutions over HTTP.
type Server struct {
	addr   string
	runner Runner
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup

	mu      sync.Mutex
	active  string
	history map[string]*RunStatus
}

// New creates a server listening on addr once started.
func New(addr string, runner Runner, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		runner:  runner,
		logger:  logger.Named("server"),
		ctx:     ctx,
		cancel:  cancel,
		history: make(map[string]*RunStatus),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Websocket routes stay outside the request logger and timeout.
	r.Get("/ws/v1/events", s.handleEvents())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/healthz", s.handleHealth)
		r.Handle("/metrics", promhttp.Handler())
		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/runs", s.handleStartRun)
			r.Get("/runs/{runID}", s.handleGetRun)
			r.Post("/interactions", s.handleResolve)
		})
	})
	return r
}

// Start serves until ctx is done, then shuts down gracefully and cancels any
// run still in progress.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening.", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close cancels runs started by the server and waits for them to return.
func (s *Server) Close() {
	s.cancel()
	s.runs.Wait()
}

// startRun launches in as a background run. It fails if a run is active.
func (s *Server) startRun(in agent.WorkflowInput) (*RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != "" {
		return nil, agent.ErrRunInProgress
	}
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	status := &RunStatus{RunID: in.RunID, State: StateRunning}
	s.active = in.RunID
	s.history[in.RunID] = status

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		result, err := s.runner.Run(s.ctx, in)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.active = ""
		status.Result = result
		if err != nil {
			status.State = StateFailed
			status.Error = err.Error()
			s.logger.Error("Run failed.", zap.String("run_id", in.RunID), zap.Error(err))
			return
		}
		status.State = StateSucceeded
		s.logger.Info("Run complete.", zap.String("run_id", in.RunID))
	}()
	snapshot := *status
	return &snapshot, nil
}

func (s *Server) runStatus(id string) (RunStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.history[id]
	if !ok {
		return RunStatus{}, false
	}
	return *status, true
}
