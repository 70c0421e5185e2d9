package solutionserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
)

// Degrading adapts an RPCClient to Client: errors are logged and replaced by
// sentinel values.
type Degrading struct {
	rpc    *RPCClient
	logger *zap.Logger
}

// NewDegrading wraps rpc.
func NewDegrading(rpc *RPCClient, logger *zap.Logger) *Degrading {
	return &Degrading{rpc: rpc, logger: logger.Named("solution_server")}
}

func (d *Degrading) Enabled() bool { return true }

func (d *Degrading) GetBestHint(ctx context.Context, ruleset, violation string) (schemas.Hint, bool) {
	hint, err := d.rpc.GetBestHint(ctx, ruleset, violation)
	if err != nil {
		d.logger.Warn("Hint lookup failed; continuing without a hint.",
			zap.String("ruleset", ruleset), zap.String("violation", violation), zap.Error(err))
		return schemas.Hint{}, false
	}
	if hint == nil {
		d.logger.Debug("No hint available.", zap.String("ruleset", ruleset), zap.String("violation", violation))
		return schemas.Hint{}, false
	}
	return *hint, true
}

func (d *Degrading) CreateIncident(ctx context.Context, incident schemas.Incident) int {
	id, err := d.rpc.CreateIncident(ctx, incident)
	if err != nil {
		d.logger.Warn("Failed to create incident.", zap.String("uri", incident.URI), zap.Error(err))
		return FailedID
	}
	return id
}

func (d *Degrading) CreateMultipleIncidents(ctx context.Context, incidents []schemas.Incident) schemas.IncidentBatch {
	batch, err := d.rpc.CreateMultipleIncidents(ctx, incidents)
	if err != nil {
		d.logger.Warn("Failed to create incidents.", zap.Int("count", len(incidents)), zap.Error(err))
		return schemas.IncidentBatch{FailedCount: len(incidents)}
	}
	return batch
}

func (d *Degrading) CreateSolution(ctx context.Context, solution schemas.Solution) int {
	id, err := d.rpc.CreateSolution(ctx, solution)
	if err != nil {
		d.logger.Warn("Failed to create solution.", zap.Ints("incident_ids", solution.IncidentIDs), zap.Error(err))
		return FailedID
	}
	return id
}

func (d *Degrading) AcceptFile(ctx context.Context, uri, content string) bool {
	if err := d.rpc.AcceptFile(ctx, uri, content); err != nil {
		d.logger.Warn("Failed to record accepted file.", zap.String("uri", uri), zap.Error(err))
		return false
	}
	return true
}

func (d *Degrading) RejectFile(ctx context.Context, uri string) bool {
	if err := d.rpc.RejectFile(ctx, uri); err != nil {
		d.logger.Warn("Failed to record rejected file.", zap.String("uri", uri), zap.Error(err))
		return false
	}
	return true
}
