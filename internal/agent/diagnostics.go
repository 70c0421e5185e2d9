// internal/agent/diagnostics.go
package agent

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/observability"
	"github.com/xkilldash9x/migrator/internal/workflow"
)

// DiagnosticsOrchestrator plans diagnostic work and dispatches it to
// sub-agents. When nothing is left it asks the user for more tasks and ends
// once the user has none.
type DiagnosticsOrchestrator struct {
	planner      *Planner
	agents       map[string]*SubAgent
	interactions *workflow.Interactions
	emitter      workflow.Emitter
	logger       *zap.Logger
	tracer       trace.Tracer
}

// NewDiagnosticsOrchestrator wires the loop. Agents are addressed by name.
func NewDiagnosticsOrchestrator(planner *Planner, agents []*SubAgent, interactions *workflow.Interactions,
	emitter workflow.Emitter, logger *zap.Logger) *DiagnosticsOrchestrator {
	if emitter == nil {
		emitter = workflow.Discard
	}
	byName := make(map[string]*SubAgent, len(agents))
	for _, a := range agents {
		byName[a.Info().Name] = a
	}
	return &DiagnosticsOrchestrator{
		planner:      planner,
		agents:       byName,
		interactions: interactions,
		emitter:      emitter,
		logger:       logger.Named("diagnostics-orch"),
		tracer:       observability.Tracer("agent"),
	}
}

// Roster describes the available agents, in the order given to the constructor
// of the planner.
func Roster(agents []*SubAgent) []AgentInfo {
	out := make([]AgentInfo, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Info())
	}
	return out
}

// Run loops until the user signals there is no more work.
func (d *DiagnosticsOrchestrator) Run(ctx context.Context, runID string, state DiagnosticsState) (DiagnosticsState, error) {
	for !state.ShouldEnd {
		var err error
		if state, err = d.Step(ctx, runID, state); err != nil {
			return state, err
		}
	}
	d.logger.Info("Diagnostics complete.", zap.Int("plans", state.Plans), zap.Int("dispatches", state.Dispatches))
	return state, nil
}

// Step performs one tick: dispatch a delegation, plan a task group, plan the
// follow-up notes or wait for the user, in that order of preference.
func (d *DiagnosticsOrchestrator) Step(ctx context.Context, runID string, state DiagnosticsState) (DiagnosticsState, error) {
	if err := ctx.Err(); err != nil {
		return state, err
	}
	ctx, span := d.tracer.Start(ctx, "diagnostics.step", trace.WithAttributes(
		attribute.Int("delegations", len(state.Delegations)),
		attribute.Int("task_groups", len(state.Tasks))))
	defer span.End()

	if next, block, ok := state.PopDelegation(); ok {
		d.dispatch(ctx, runID, next.Dispatches, block)
		return next, nil
	}
	if next, group, ok := state.PopTaskGroup(); ok {
		blocks := d.planner.Plan(ctx, runID, next.Plans, PlanInput{URI: group.URI, Tasks: group.Tasks, History: next.History})
		return next.WithDelegations(blocks), nil
	}
	if state.AdditionalInfo != "" {
		next, info := state.TakeAdditionalInfo()
		blocks := d.planner.Plan(ctx, runID, next.Plans, PlanInput{AdditionalInfo: info, History: next.History})
		return next.WithDelegations(blocks), nil
	}
	return d.await(ctx, state)
}

func (d *DiagnosticsOrchestrator) dispatch(ctx context.Context, runID string, seq int, block schemas.DelegationBlock) {
	agent, ok := d.agents[block.AgentName]
	if !ok {
		d.logger.Warn("Planner chose an unknown agent, skipping.", zap.String("agent", block.AgentName))
		return
	}
	d.logger.Info("Dispatching delegation.", zap.String("agent", block.AgentName), zap.Int("seq", seq))
	agent.Run(ctx, runID, seq, block.Instructions)
}

// await parks on a tasks interaction. New tasks resume the loop; an empty
// answer or a rejection ends it.
func (d *DiagnosticsOrchestrator) await(ctx context.Context, state DiagnosticsState) (DiagnosticsState, error) {
	msg := schemas.NewWorkflowMessage(schemas.MessageUserInteraction, schemas.UserInteraction{
		Type:          schemas.InteractionTasks,
		SystemMessage: "All planned work is done. Report remaining problems to continue, or none to finish.",
	})
	pending, err := d.interactions.Open(msg.ID)
	if err != nil {
		return state, err
	}
	d.emitter.Emit(ctx, msg)
	d.logger.Debug("Waiting for tasks.", zap.String("interaction_id", msg.ID))

	resp, err := pending.Wait(ctx)
	switch {
	case errors.Is(err, workflow.ErrInteractionRejected):
		d.logger.Info("Task request rejected, ending diagnostics.")
		return state.End(), nil
	case err != nil:
		return state, err
	}
	groups := GroupTasks(resp.Tasks)
	if len(groups) == 0 {
		return state.End(), nil
	}
	return state.WithTasks(groups), nil
}
