// api/schemas/incidents.go
package schemas

// Incident is a single static-analysis finding: a rule violation at a file location.
type Incident struct {
	URI         string `json:"uri"`
	LineNumber  int    `json:"line_number,omitempty"`
	Message     string `json:"message"`
	RuleSet     string `json:"ruleset_name,omitempty"`
	Violation   string `json:"violation_name,omitempty"`
	Description string `json:"violation_description,omitempty"`
	Category    string `json:"violation_category,omitempty"`
	CodeSnip    string `json:"code_snip,omitempty"`
}

// ViolationKey identifies the rule an incident violates.
type ViolationKey struct {
	RuleSet   string
	Violation string
}

// Key returns the (ruleset, violation) pair of the incident.
func (i Incident) Key() ViolationKey {
	return ViolationKey{RuleSet: i.RuleSet, Violation: i.Violation}
}

// Hint is a previously recorded remediation for a (ruleset, violation) pair.
type Hint struct {
	ID   int    `json:"hint_id"`
	Text string `json:"hint"`
}

// IncidentBatch reports the outcome of registering several incidents at once.
type IncidentBatch struct {
	IDs          []int `json:"incident_ids"`
	CreatedCount int   `json:"created_count"`
	FailedCount  int   `json:"failed_count"`
}

// FileSnapshot is the content of one file at a point in time.
type FileSnapshot struct {
	URI     string `json:"uri"`
	Content string `json:"content"`
}

// Solution is a recorded before/after change submitted for future hint reuse.
type Solution struct {
	IncidentIDs []int          `json:"incident_ids"`
	Before      []FileSnapshot `json:"before"`
	After       []FileSnapshot `json:"after"`
	Diff        string         `json:"diff,omitempty"`
	Reasoning   string         `json:"reasoning"`
	UsedHintIDs []int          `json:"used_hint_ids"`
}

// DiagnosticTask is an ad hoc problem reported by the IDE for a file.
type DiagnosticTask struct {
	URI  string `json:"uri"`
	Task string `json:"task"`
}

// TaskGroup gathers the diagnostic tasks reported for one file.
type TaskGroup struct {
	URI   string   `json:"uri"`
	Tasks []string `json:"tasks"`
}

// DelegationBlock routes a subset of tasks to a specialist agent.
type DelegationBlock struct {
	AgentName    string `json:"agent_name"`
	Instructions string `json:"instructions"`
}
