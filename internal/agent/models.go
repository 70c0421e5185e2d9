// internal/agent/models.go
package agent

import (
	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/autofix"
)

// Node names. They select the model in config and address the response cache.
const (
	NodeFix             = "fix"
	NodeSummarize       = "summarize"
	NodePlanner         = "planner"
	AgentGeneralFix     = "generalFix"
	AgentJavaDependency = "javaDependency"
)

// FixEntry is one unit of work for the fix orchestrator: a file and the
// incidents reported in it.
type FixEntry struct {
	URI       string             `json:"uri"`
	Incidents []schemas.Incident `json:"incidents"`
}

// FixOutcome pairs a fix result with the task it was produced for.
type FixOutcome struct {
	Task   autofix.FixTask
	Result autofix.FixResult
}

// Modified reports whether the fix proposed new content.
func (o FixOutcome) Modified() bool {
	return !o.Result.Failed && o.Result.UpdatedFile != "" && o.Result.UpdatedFile != o.Task.Content
}

// FixAggregate is the hand-off artifact of the fix loop.
type FixAggregate struct {
	// Reasoning concatenates the per-file reasoning in input order, each block
	// tagged with the workspace-relative path.
	Reasoning string `json:"reasoning"`
	// AdditionalInfo is tagged the same way.
	AdditionalInfo string `json:"additional_info"`
	// ModifiedFiles lists changed paths in input order, without duplicates.
	ModifiedFiles []string `json:"modified_files"`
}

// Summary is the output of the summarization step.
type Summary struct {
	AdditionalInfo string `json:"additional_info"`
	History        string `json:"history"`
}

// WorkflowInput starts a migration run.
type WorkflowInput struct {
	// RunID addresses the response cache. A fresh id is generated when empty.
	RunID     string             `json:"run_id,omitempty"`
	Incidents []schemas.Incident `json:"incidents"`
	// Tasks seeds the diagnostics phase with IDE-reported problems.
	Tasks []schemas.DiagnosticTask `json:"tasks,omitempty"`
	// EnableDiagnostics overrides the configured default when set.
	EnableDiagnostics *bool `json:"enable_diagnostics,omitempty"`
}

// Result reports what a run produced.
type Result struct {
	RunID     string       `json:"run_id"`
	Aggregate FixAggregate `json:"aggregate"`
	Summary   Summary      `json:"summary"`
	// Staged lists every path with an uncommitted edit at the end of the run,
	// including edits made by diagnostic agents.
	Staged []string `json:"staged"`
}

// AgentInfo describes a specialist to the planner.
type AgentInfo struct {
	Name        string
	Description string
}
