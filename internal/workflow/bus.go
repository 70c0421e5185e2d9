// Package workflow is the substrate every workflow node builds on: provider
// calls with tool fallback, tool execution, event emission and suspended user
// interactions.
package workflow

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/observability"
)

// EventWorkflowMessage is the single named channel subscribers listen on.
const EventWorkflowMessage = "workflowMessage"

// ErrBusClosed is returned when publishing after Shutdown.
var ErrBusClosed = errors.New("workflow bus is shut down")

// Emitter accepts workflow messages from a node. Implementations decide where
// they go; nodes never know who is listening.
type Emitter interface {
	Emit(ctx context.Context, msg schemas.WorkflowMessage)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, msg schemas.WorkflowMessage)

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, msg schemas.WorkflowMessage) { f(ctx, msg) }

// Discard drops every message.
var Discard Emitter = EmitterFunc(func(context.Context, schemas.WorkflowMessage) {})

// Bus fans workflow messages out to subscribers in publish order. Publishing
// blocks while a subscriber buffer is full, so a slow consumer applies
// backpressure instead of losing events.
type Bus struct {
	logger     *zap.Logger
	bufferSize int

	mu          sync.RWMutex
	subscribers map[uint64]chan schemas.WorkflowMessage
	nextID      uint64

	activePosts sync.WaitGroup
	shutdownMu  sync.Mutex
	isShutdown  bool
}

// NewBus creates a bus whose subscriber channels hold bufferSize messages.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{
		logger:      logger.Named("workflow_bus"),
		bufferSize:  bufferSize,
		subscribers: make(map[uint64]chan schemas.WorkflowMessage),
	}
}

// Publish delivers msg to every current subscriber.
func (b *Bus) Publish(ctx context.Context, msg schemas.WorkflowMessage) (err error) {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return ErrBusClosed
	}
	b.activePosts.Add(1)
	b.shutdownMu.Unlock()
	defer b.activePosts.Done()

	// A send can race with Shutdown closing the channel.
	defer func() {
		if r := recover(); r != nil {
			b.logger.Debug("Recovered from send on closed subscriber during shutdown.", zap.Any("panic", r))
			err = ErrBusClosed
		}
	}()

	observability.WorkflowMessages.WithLabelValues(string(msg.Type)).Inc()

	b.mu.RLock()
	subs := make([]chan schemas.WorkflowMessage, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Emit implements Emitter. Delivery failures are logged.
func (b *Bus) Emit(ctx context.Context, msg schemas.WorkflowMessage) {
	if err := b.Publish(ctx, msg); err != nil {
		b.logger.Debug("Dropped workflow message.", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

// Subscribe returns a channel receiving every message published from now on,
// and a function that unsubscribes and closes it.
func (b *Bus) Subscribe() (<-chan schemas.WorkflowMessage, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan schemas.WorkflowMessage, b.bufferSize)
	if b.isClosed() {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if existing, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(existing)
			}
		})
	}
}

func (b *Bus) isClosed() bool {
	b.shutdownMu.Lock()
	defer b.shutdownMu.Unlock()
	return b.isShutdown
}

// Shutdown stops accepting messages, closes every subscriber channel and waits
// for in-flight publishes to return.
func (b *Bus) Shutdown() {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return
	}
	b.isShutdown = true
	b.shutdownMu.Unlock()

	b.mu.Lock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	b.activePosts.Wait()
}
