package workflow

import (
	"context"
	"sync"

	"github.com/xkilldash9x/migrator/api/schemas"
)

// Recorder is an Emitter that keeps every message, optionally forwarding to
// another emitter. It backs run summaries and tests.
type Recorder struct {
	mu   sync.Mutex
	msgs []schemas.WorkflowMessage
	next Emitter
}

// NewRecorder creates a recorder forwarding to next, which may be nil.
func NewRecorder(next Emitter) *Recorder {
	return &Recorder{next: next}
}

// Emit records msg.
func (r *Recorder) Emit(ctx context.Context, msg schemas.WorkflowMessage) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	if r.next != nil {
		r.next.Emit(ctx, msg)
	}
}

// Messages returns a copy of everything recorded.
func (r *Recorder) Messages() []schemas.WorkflowMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schemas.WorkflowMessage(nil), r.msgs...)
}

// OfType returns the recorded messages with the given type, in order.
func (r *Recorder) OfType(t schemas.WorkflowMessageType) []schemas.WorkflowMessage {
	var out []schemas.WorkflowMessage
	for _, m := range r.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}
