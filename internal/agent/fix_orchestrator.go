// internal/agent/fix_orchestrator.go
package agent

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/autofix"
	"github.com/xkilldash9x/migrator/internal/observability"
	"github.com/xkilldash9x/migrator/internal/solutionserver"
	"github.com/xkilldash9x/migrator/internal/workflow"
	"github.com/xkilldash9x/migrator/internal/workspace"
)

// FixOrchestrator drives the per-file fix loop. Files are processed one at a
// time in queue order. Each tick first flushes the previous tick's result to the
// overlay and the solution server, then fixes the next file.
type FixOrchestrator struct {
	fixer     autofix.FixerInterface
	overlay   *workspace.Overlay
	solutions solutionserver.Client
	emitter   workflow.Emitter
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewFixOrchestrator wires the loop. solutions and emitter may be nil.
func NewFixOrchestrator(fixer autofix.FixerInterface, overlay *workspace.Overlay, solutions solutionserver.Client,
	emitter workflow.Emitter, logger *zap.Logger) *FixOrchestrator {
	if solutions == nil {
		solutions = solutionserver.Disabled{}
	}
	if emitter == nil {
		emitter = workflow.Discard
	}
	return &FixOrchestrator{
		fixer:     fixer,
		overlay:   overlay,
		solutions: solutions,
		emitter:   emitter,
		logger:    logger.Named("fix-orch"),
		tracer:    observability.Tracer("agent"),
	}
}

// Run processes entries until the queue is drained and returns the final state.
// Only context cancellation stops the loop early.
func (o *FixOrchestrator) Run(ctx context.Context, runID string, entries []FixEntry) (FixState, error) {
	o.logger.Info("Starting fix loop.", zap.String("run_id", runID), zap.Int("files", len(entries)))
	state := NewFixState(entries)
	for !state.Done {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		state = o.Step(ctx, runID, state)
	}
	o.logger.Info("Fix loop complete.",
		zap.String("run_id", runID),
		zap.Int("modified", len(state.Aggregate.ModifiedFiles)))
	return state, nil
}

// Step performs one tick of the loop.
func (o *FixOrchestrator) Step(ctx context.Context, runID string, state FixState) FixState {
	ctx, span := o.tracer.Start(ctx, "fix.step", trace.WithAttributes(attribute.Int("cursor", state.Cursor)))
	defer span.End()

	state, pending := state.TakePending()
	if pending != nil {
		o.flush(ctx, *pending)
	}

	state, entry, ok := state.Pop()
	if !ok {
		return state.Finalize()
	}

	task, err := o.load(entry)
	if err != nil {
		observability.FilesFixed.WithLabelValues("read_error").Inc()
		o.logger.Error("Failed to read file, skipping.", zap.String("uri", entry.URI), zap.Error(err))
		o.emitter.Emit(ctx, schemas.NewWorkflowMessage(schemas.MessageError, schemas.ErrorEvent{
			Code:      schemas.ErrCodeFileRead,
			Message:   err.Error(),
			Operation: "read",
			Target:    entry.URI,
		}))
		return state
	}
	task.CacheKey = []string{runID, NodeFix, strconv.Itoa(state.Cursor - 1)}

	result := o.fixer.Fix(ctx, task)
	switch {
	case result.Failed:
		observability.FilesFixed.WithLabelValues("failed").Inc()
	case result.UpdatedFile == "" || result.UpdatedFile == task.Content:
		observability.FilesFixed.WithLabelValues("unchanged").Inc()
	}
	return state.WithResult(task, result)
}

// load reads the latest content of an entry's file, preferring staged edits so
// a file fixed twice in one run builds on its first fix.
func (o *FixOrchestrator) load(entry FixEntry) (autofix.FixTask, error) {
	content, staged, err := o.overlay.Read(entry.URI)
	if err != nil {
		return autofix.FixTask{}, err
	}
	path, err := o.overlay.Storage().Rel(entry.URI)
	if err != nil {
		return autofix.FixTask{}, err
	}
	o.logger.Debug("Loaded file.", zap.String("path", path), zap.Bool("staged", staged))
	return autofix.FixTask{
		URI:       entry.URI,
		Path:      path,
		Content:   content,
		Incidents: entry.Incidents,
	}, nil
}

// flush stages a modified file, announces it and records the solution. Solution
// server failures are logged and never abort the loop.
func (o *FixOrchestrator) flush(ctx context.Context, outcome FixOutcome) {
	task, result := outcome.Task, outcome.Result
	rel, err := o.overlay.Stage(task.Path, result.UpdatedFile)
	if err != nil {
		o.logger.Error("Failed to stage fix.", zap.String("path", task.Path), zap.Error(err))
		o.emitter.Emit(ctx, schemas.NewWorkflowMessage(schemas.MessageError, schemas.ErrorEvent{
			Code:      schemas.ErrCodeFileWrite,
			Message:   err.Error(),
			Operation: "stage",
			Target:    task.Path,
		}))
		return
	}
	observability.FilesFixed.WithLabelValues("modified").Inc()

	diff := workspace.Diff(rel, task.Content, result.UpdatedFile)
	o.emitter.Emit(ctx, schemas.NewWorkflowMessage(schemas.MessageModifiedFile, schemas.ModifiedFile{
		Path:            rel,
		Content:         result.UpdatedFile,
		OriginalContent: task.Content,
		Diff:            diff,
	}))

	if result.Reasoning == "" || len(task.Incidents) == 0 {
		o.logger.Debug("Skipping solution record, fix is incomplete.", zap.String("path", rel))
		return
	}
	batch := o.solutions.CreateMultipleIncidents(ctx, task.Incidents)
	ids := make([]int, 0, len(batch.IDs))
	for _, id := range batch.IDs {
		if id != solutionserver.FailedID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		o.logger.Debug("No incidents registered, not recording a solution.", zap.String("path", rel))
		return
	}

	solutionID := o.solutions.CreateSolution(ctx, schemas.Solution{
		IncidentIDs: ids,
		Before:      []schemas.FileSnapshot{{URI: rel, Content: task.Content}},
		After:       []schemas.FileSnapshot{{URI: rel, Content: result.UpdatedFile}},
		Diff:        diff,
		Reasoning:   result.Reasoning,
		UsedHintIDs: result.UsedHintIDs,
	})
	if solutionID == solutionserver.FailedID {
		o.logger.Warn("Failed to record solution.", zap.String("path", rel), zap.Int("incidents", len(ids)))
		return
	}
	o.logger.Info("Recorded solution.", zap.String("path", rel), zap.Int("solution_id", solutionID),
		zap.Ints("incident_ids", ids))
}
