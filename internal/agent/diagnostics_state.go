// internal/agent/diagnostics_state.go
package agent

import (
	"sort"

	"github.com/xkilldash9x/migrator/api/schemas"
)

// DiagnosticsState is the state of the planner/delegator loop. Like FixState it
// is a value and transitions return a new state.
type DiagnosticsState struct {
	// Tasks are task groups not yet planned, in order.
	Tasks []schemas.TaskGroup
	// AdditionalInfo is summarized follow-up work not yet planned.
	AdditionalInfo string
	// History is the prior migration context given to the planner.
	History string
	// Delegations are planned blocks not yet dispatched, consumed first in first out.
	Delegations []schemas.DelegationBlock
	// Plans and Dispatches count planner calls and agent runs.
	Plans      int
	Dispatches int
	ShouldEnd  bool
}

// HasWork reports whether anything is left to plan or dispatch.
func (s DiagnosticsState) HasWork() bool {
	return len(s.Delegations) > 0 || len(s.Tasks) > 0 || s.AdditionalInfo != ""
}

// WithTasks appends task groups to plan.
func (s DiagnosticsState) WithTasks(groups []schemas.TaskGroup) DiagnosticsState {
	s.Tasks = append(s.Tasks[:len(s.Tasks):len(s.Tasks)], groups...)
	return s
}

// PopTaskGroup removes and returns the first task group.
func (s DiagnosticsState) PopTaskGroup() (DiagnosticsState, schemas.TaskGroup, bool) {
	if len(s.Tasks) == 0 {
		return s, schemas.TaskGroup{}, false
	}
	g := s.Tasks[0]
	s.Tasks = s.Tasks[1:]
	return s, g, true
}

// TakeAdditionalInfo returns the pending follow-up notes and clears them.
func (s DiagnosticsState) TakeAdditionalInfo() (DiagnosticsState, string) {
	info := s.AdditionalInfo
	s.AdditionalInfo = ""
	return s, info
}

// WithDelegations queues planned blocks after any already queued and counts the
// planner call.
func (s DiagnosticsState) WithDelegations(blocks []schemas.DelegationBlock) DiagnosticsState {
	s.Delegations = append(s.Delegations[:len(s.Delegations):len(s.Delegations)], blocks...)
	s.Plans++
	return s
}

// PopDelegation removes and returns the oldest queued block.
func (s DiagnosticsState) PopDelegation() (DiagnosticsState, schemas.DelegationBlock, bool) {
	if len(s.Delegations) == 0 {
		return s, schemas.DelegationBlock{}, false
	}
	b := s.Delegations[0]
	s.Delegations = s.Delegations[1:]
	s.Dispatches++
	return s, b, true
}

// End marks the loop finished.
func (s DiagnosticsState) End() DiagnosticsState {
	s.ShouldEnd = true
	return s
}

// GroupTasks groups tasks by uri. Uris are sorted lexicographically and so are
// the tasks of each uri. Duplicate tasks for one uri collapse.
func GroupTasks(tasks []schemas.DiagnosticTask) []schemas.TaskGroup {
	byURI := make(map[string]map[string]bool)
	for _, t := range tasks {
		if t.Task == "" {
			continue
		}
		if byURI[t.URI] == nil {
			byURI[t.URI] = make(map[string]bool)
		}
		byURI[t.URI][t.Task] = true
	}
	uris := make([]string, 0, len(byURI))
	for uri := range byURI {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	groups := make([]schemas.TaskGroup, 0, len(uris))
	for _, uri := range uris {
		list := make([]string, 0, len(byURI[uri]))
		for task := range byURI[uri] {
			list = append(list, task)
		}
		sort.Strings(list)
		groups = append(groups, schemas.TaskGroup{URI: uri, Tasks: list})
	}
	return groups
}
