package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
)

// ErrInteractionRejected is returned by Wait when the interaction was rejected.
var ErrInteractionRejected = errors.New("user interaction rejected")

type settlement struct {
	response schemas.UserInteractionResponse
	err      error
}

// Pending is a suspended continuation awaiting one external answer.
type Pending struct {
	id    string
	table *Interactions
	ch    chan settlement
}

// ID is the correlation id the resolver must echo.
func (p *Pending) ID() string { return p.id }

// Wait blocks until the interaction is resolved, rejected or ctx is done.
// Cancellation removes the entry so a late resolution is a no-op.
func (p *Pending) Wait(ctx context.Context) (schemas.UserInteractionResponse, error) {
	select {
	case s := <-p.ch:
		return s.response, s.err
	case <-ctx.Done():
		p.table.remove(p.id)
		return schemas.UserInteractionResponse{}, ctx.Err()
	}
}

// Interactions is the per-workflow table of pending user interactions. Each id
// is settled at most once; settling an unknown id does nothing.
type Interactions struct {
	logger  *zap.Logger
	mu      sync.Mutex
	pending map[string]chan settlement
}

// NewInteractions creates an empty table.
func NewInteractions(logger *zap.Logger) *Interactions {
	return &Interactions{
		logger:  logger.Named("interactions"),
		pending: make(map[string]chan settlement),
	}
}

// Open registers id. Register before announcing the interaction so a fast
// resolver cannot miss it.
func (t *Interactions) Open(id string) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.pending[id]; exists {
		return nil, fmt.Errorf("interaction %s is already pending", id)
	}
	ch := make(chan settlement, 1)
	t.pending[id] = ch
	return &Pending{id: id, table: t, ch: ch}, nil
}

// Resolve answers the interaction id. It reports whether id was pending.
func (t *Interactions) Resolve(id string, response schemas.UserInteractionResponse) bool {
	return t.settle(id, settlement{response: response})
}

// Reject cancels the interaction id. It reports whether id was pending.
func (t *Interactions) Reject(id, reason string) bool {
	err := ErrInteractionRejected
	if reason != "" {
		err = fmt.Errorf("%w: %s", ErrInteractionRejected, reason)
	}
	return t.settle(id, settlement{err: err})
}

// Len is the number of outstanding interactions.
func (t *Interactions) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Interactions) settle(id string, s settlement) bool {
	t.mu.Lock()
	ch, ok := t.pending[id]
	delete(t.pending, id)
	t.mu.Unlock()
	if !ok {
		t.logger.Debug("Ignoring resolution for unknown interaction.", zap.String("id", id))
		return false
	}
	ch <- s
	return true
}

func (t *Interactions) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}
