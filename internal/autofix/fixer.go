// internal/autofix/fixer.go
package autofix

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/solutionserver"
	"github.com/xkilldash9x/migrator/internal/workflow"
)

// Fixer asks a model for a single-shot fix of one file. It looks up remediation
// hints for the violations in the file, renders the fix prompt and parses the
// labeled response.
type Fixer struct {
	node      *workflow.Node
	solutions solutionserver.Client
	prompt    PromptOptions
	logger    *zap.Logger
}

var _ FixerInterface = (*Fixer)(nil)

// NewFixer initializes a fixer over node. solutions may be nil.
func NewFixer(node *workflow.Node, solutions solutionserver.Client, prompt PromptOptions, logger *zap.Logger) *Fixer {
	if solutions == nil {
		solutions = solutionserver.Disabled{}
	}
	return &Fixer{
		node:      node,
		solutions: solutions,
		prompt:    prompt.withDefaults(),
		logger:    logger.Named("autofix-fixer"),
	}
}

// Fix produces a fix for task. It never returns an error: a failed model call
// yields a result with Failed set and empty sections.
func (f *Fixer) Fix(ctx context.Context, task FixTask) FixResult {
	result := FixResult{URI: task.URI, Path: task.Path}
	hints := f.lookupHints(ctx, task.Incidents)
	for _, h := range hints {
		result.UsedHintIDs = append(result.UsedHintIDs, h.ID)
	}

	f.logger.Info("Requesting fix.",
		zap.String("path", task.Path),
		zap.Int("incidents", len(task.Incidents)),
		zap.Int("hints", len(hints)))

	messages := []schemas.Message{
		schemas.SystemMessage(systemPrompt(f.prompt)),
		schemas.UserMessage(buildPrompt(f.prompt, task, hints)),
	}
	resp := f.node.StreamOrInvoke(ctx, messages,
		workflow.StreamOptions{EmitResponseChunks: true},
		schemas.CallOptions{CacheKey: task.CacheKey})
	if resp == nil {
		result.Failed = true
		return result
	}

	parsed := ParseFixResponse(resp.Content)
	result.Reasoning = parsed.Reasoning
	result.UpdatedFile = parsed.UpdatedFile
	result.AdditionalInfo = parsed.AdditionalInfo
	if result.UpdatedFile == "" {
		f.logger.Warn("Model returned no updated file content.", zap.String("path", task.Path))
	}
	return result
}

// lookupHints queries the solution server once per distinct violation, in the
// order violations first appear.
func (f *Fixer) lookupHints(ctx context.Context, incidents []schemas.Incident) []schemas.Hint {
	if !f.solutions.Enabled() {
		return nil
	}
	seen := make(map[schemas.ViolationKey]bool, len(incidents))
	var hints []schemas.Hint
	for _, incident := range incidents {
		key := incident.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		hint, ok := f.solutions.GetBestHint(ctx, key.RuleSet, key.Violation)
		if !ok {
			f.logger.Debug("No hint available.", zap.String("ruleset", key.RuleSet), zap.String("violation", key.Violation))
			continue
		}
		hints = append(hints, hint)
	}
	return hints
}
