// internal/agent/fix_state.go
package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/migrator/internal/autofix"
)

// FixState is the state of the fix loop. It is a value: every transition returns
// a new state and never mutates the receiver's slices.
//
// A run moves through draining the queue, flushing the previous result and,
// once the queue is empty, finalizing the aggregate.
type FixState struct {
	Queue  []FixEntry
	Cursor int
	// Outcomes holds results in the order their entries were popped.
	Outcomes []FixOutcome
	// Pending is the last tick's modified result, not yet flushed.
	Pending *FixOutcome
	// Done is set by Finalize.
	Done      bool
	Aggregate FixAggregate
}

// NewFixState starts a fix loop over queue.
func NewFixState(queue []FixEntry) FixState {
	return FixState{Queue: queue}
}

// Drained reports whether every entry has been popped.
func (s FixState) Drained() bool { return s.Cursor >= len(s.Queue) }

// TakePending hands out the pending outcome and clears it, so a result is
// flushed at most once.
func (s FixState) TakePending() (FixState, *FixOutcome) {
	pending := s.Pending
	s.Pending = nil
	return s, pending
}

// Pop returns the next entry and advances the cursor. The cursor moves even if
// the caller later fails to process the entry.
func (s FixState) Pop() (FixState, FixEntry, bool) {
	if s.Drained() {
		return s, FixEntry{}, false
	}
	entry := s.Queue[s.Cursor]
	s.Cursor++
	return s, entry, true
}

// WithResult records the outcome of the entry popped last. Modified outcomes
// become pending for the next tick's flush.
func (s FixState) WithResult(task autofix.FixTask, result autofix.FixResult) FixState {
	outcome := FixOutcome{Task: task, Result: result}
	s.Outcomes = append(s.Outcomes[:len(s.Outcomes):len(s.Outcomes)], outcome)
	s.Pending = nil
	if outcome.Modified() {
		s.Pending = &outcome
	}
	return s
}

// Finalize folds the outcomes into the aggregate and marks the loop done.
func (s FixState) Finalize() FixState {
	var reasoning, info, modified []string
	seen := make(map[string]bool)
	for _, o := range s.Outcomes {
		path := o.Task.Path
		if r := o.Result.Reasoning; r != "" {
			reasoning = append(reasoning, tagged(path, r))
		}
		if a := o.Result.AdditionalInfo; a != "" {
			info = append(info, tagged(path, a))
		}
		if o.Modified() && !seen[path] {
			seen[path] = true
			modified = append(modified, path)
		}
	}
	s.Done = true
	s.Pending = nil
	s.Aggregate = FixAggregate{
		Reasoning:      strings.Join(reasoning, "\n\n"),
		AdditionalInfo: strings.Join(info, "\n\n"),
		ModifiedFiles:  modified,
	}
	return s
}

func tagged(path, text string) string {
	return fmt.Sprintf("### %s\n%s", path, text)
}
