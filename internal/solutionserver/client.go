// Package solutionserver talks to the remote hint, incident and solution
// registry. Everything the orchestrator sees degrades instead of failing: a
// disabled or unreachable server yields no hints and sentinel ids.
package solutionserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

// FailedID is returned in place of an id the server could not assign.
const FailedID = -1

// Client is the surface the workflow consumes. Implementations never return errors.
type Client interface {
	Enabled() bool
	GetBestHint(ctx context.Context, ruleset, violation string) (schemas.Hint, bool)
	CreateIncident(ctx context.Context, incident schemas.Incident) int
	CreateMultipleIncidents(ctx context.Context, incidents []schemas.Incident) schemas.IncidentBatch
	CreateSolution(ctx context.Context, solution schemas.Solution) int
	AcceptFile(ctx context.Context, uri, content string) bool
	RejectFile(ctx context.Context, uri string) bool
}

// New returns the client described by cfg: a Disabled client when the server is
// off, otherwise a degrading client over JSON-RPC.
func New(cfg config.SolutionServerConfig, logger *zap.Logger, opts ...RPCOption) Client {
	if !cfg.Enabled || cfg.URL == "" {
		return Disabled{}
	}
	if cfg.Token != "" {
		opts = append([]RPCOption{WithTokenProvider(StaticToken(cfg.Token))}, opts...)
	}
	return NewDegrading(NewRPCClient(cfg.URL, cfg.Timeout, logger, opts...), logger)
}

// Disabled answers every call with the "nothing available" value.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) GetBestHint(context.Context, string, string) (schemas.Hint, bool) {
	return schemas.Hint{}, false
}

func (Disabled) CreateIncident(context.Context, schemas.Incident) int { return FailedID }

func (Disabled) CreateMultipleIncidents(_ context.Context, incidents []schemas.Incident) schemas.IncidentBatch {
	return schemas.IncidentBatch{FailedCount: len(incidents)}
}

func (Disabled) CreateSolution(context.Context, schemas.Solution) int { return FailedID }
func (Disabled) AcceptFile(context.Context, string, string) bool    { return false }
func (Disabled) RejectFile(context.Context, string) bool            { return false }
