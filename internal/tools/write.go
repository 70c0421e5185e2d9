package tools

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/solutionserver"
	"github.com/xkilldash9x/migrator/internal/workflow"
	"github.com/xkilldash9x/migrator/internal/workspace"
)

// ErrChangeRejected is returned when the human rejects a proposed write.
var ErrChangeRejected = errors.New("user rejected the change")

// WriteFile stages new file content and waits for a human to accept or reject
// it. Durable storage is never written.
type WriteFile struct {
	overlay      *workspace.Overlay
	emitter      workflow.Emitter
	interactions *workflow.Interactions
	solutions    solutionserver.Client
	// wait false accepts every change without asking.
	wait   bool
	logger *zap.Logger
}

// NewWriteFile creates the tool. With wait false, writes are accepted as soon
// as they are announced.
func NewWriteFile(overlay *workspace.Overlay, emitter workflow.Emitter, interactions *workflow.Interactions,
	solutions solutionserver.Client, wait bool, logger *zap.Logger) *WriteFile {
	if solutions == nil {
		solutions = solutionserver.Disabled{}
	}
	return &WriteFile{
		overlay:      overlay,
		emitter:      emitter,
		interactions: interactions,
		solutions:    solutions,
		wait:         wait,
		logger:       logger.Named(NameWriteFile),
	}
}

func (t *WriteFile) Definition() schemas.ToolDefinition {
	return schemas.ToolDefinition{
		Name:        NameWriteFile,
		Description: "Replace the full content of a workspace file. The change is shown to the user, who must accept it.",
		Parameters: objectSchema([]string{"path", "content"}, map[string]string{
			"path":    "Workspace-relative file path",
			"content": "The complete new file content",
		}),
	}
}

func (t *WriteFile) Invoke(ctx context.Context, call schemas.ToolCall) (string, error) {
	path, err := stringArg(call, "path", true)
	if err != nil {
		return "", err
	}
	content, err := stringArg(call, "content", false)
	if err != nil {
		return "", err
	}

	original, _, readErr := t.overlay.Read(path)
	if readErr != nil && errors.Is(readErr, workspace.ErrPathEscapesWorkspace) {
		return "", readErr
	}
	rel, err := t.overlay.Stage(path, content)
	if err != nil {
		return "", err
	}

	msg := schemas.NewWorkflowMessage(schemas.MessageModifiedFile, schemas.ModifiedFile{
		Path:            rel,
		Content:         content,
		OriginalContent: original,
		Diff:            workspace.Diff(rel, original, content),
		UserInteraction: &schemas.UserInteraction{
			Type:          schemas.InteractionModifiedFile,
			SystemMessage: fmt.Sprintf("Accept the proposed change to %s?", rel),
		},
	})

	if !t.wait {
		t.emitter.Emit(ctx, msg)
		t.solutions.AcceptFile(ctx, rel, content)
		return fmt.Sprintf("Wrote %s.", rel), nil
	}

	// Register before announcing so a fast resolver cannot miss the id.
	pending, err := t.interactions.Open(msg.ID)
	if err != nil {
		t.overlay.Discard(rel, 1)
		return "", err
	}
	t.emitter.Emit(ctx, msg)

	resp, err := pending.Wait(ctx)
	switch {
	case err == nil && resp.Accepted():
		t.solutions.AcceptFile(ctx, rel, content)
		t.logger.Info("Change accepted.", zap.String("path", rel))
		return fmt.Sprintf("Wrote %s. The user accepted the change.", rel), nil
	case err == nil || errors.Is(err, workflow.ErrInteractionRejected):
		t.overlay.Discard(rel, 1)
		t.solutions.RejectFile(ctx, rel)
		t.logger.Info("Change rejected.", zap.String("path", rel))
		return "", fmt.Errorf("%w to %s", ErrChangeRejected, rel)
	default:
		t.overlay.Discard(rel, 1)
		return "", fmt.Errorf("waiting for review of %s: %w", rel, err)
	}
}
