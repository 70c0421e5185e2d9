// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/agent"
)

const maxBodyBytes = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var in agent.WorkflowInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid run request: "+err.Error())
		return
	}
	if in.RunID == "" {
		in.RunID = uuid.New().String()
	}
	status, err := s.startRun(in)
	switch {
	case errors.Is(err, agent.ErrRunInProgress):
		s.respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, status)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	status, ok := s.runStatus(chi.URLParam(r, "runID"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var res schemas.InteractionResolution
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&res); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid resolution: "+err.Error())
		return
	}
	if err := s.runner.ResolveUserInteraction(res); err != nil {
		if errors.Is(err, agent.ErrUnknownInteraction) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to write response.", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
