// File: internal/mocks/scripted.go
package mocks

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"github.com/xkilldash9x/migrator/api/schemas"
)

// ErrScriptExhausted is returned when a ScriptedProvider runs out of turns.
var ErrScriptExhausted = errors.New("scripted provider has no turns left")

// Turn is one scripted model response.
type Turn struct {
	Chunks []schemas.MessageChunk
	// Message is returned from Invoke. When empty, the chunks are folded instead.
	Message *schemas.Message
	Err     error
}

// TextTurn splits text into chunks of at most size bytes.
func TextTurn(text string, size int) Turn {
	if size <= 0 {
		size = len(text)
	}
	var chunks []schemas.MessageChunk
	for len(text) > 0 {
		n := min(size, len(text))
		chunks = append(chunks, schemas.MessageChunk{Content: text[:n]})
		text = text[n:]
	}
	return Turn{Chunks: chunks}
}

// ScriptedProvider replays turns in order, one per call, and records every
// request. It is safe for concurrent use; turns are shared by bound copies.
type ScriptedProvider struct {
	Native          bool
	NativeStreaming bool

	state *scriptState
	tools []schemas.ToolDefinition
}

type scriptState struct {
	mu       sync.Mutex
	turns    []Turn
	requests [][]schemas.Message
	bound    [][]schemas.ToolDefinition
}

// NewScriptedProvider creates a provider that answers with turns in order.
func NewScriptedProvider(turns ...Turn) *ScriptedProvider {
	return &ScriptedProvider{state: &scriptState{turns: turns}}
}

func (p *ScriptedProvider) next(messages []schemas.Message) (Turn, error) {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	p.state.requests = append(p.state.requests, append([]schemas.Message(nil), messages...))
	p.state.bound = append(p.state.bound, p.tools)
	if len(p.state.turns) == 0 {
		return Turn{}, ErrScriptExhausted
	}
	t := p.state.turns[0]
	p.state.turns = p.state.turns[1:]
	return t, nil
}

func (p *ScriptedProvider) Stream(ctx context.Context, messages []schemas.Message, _ schemas.CallOptions) iter.Seq2[schemas.MessageChunk, error] {
	return func(yield func(schemas.MessageChunk, error) bool) {
		turn, err := p.next(messages)
		if err != nil {
			yield(schemas.MessageChunk{}, err)
			return
		}
		for _, c := range turn.Chunks {
			if ctx.Err() != nil {
				yield(schemas.MessageChunk{}, ctx.Err())
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if turn.Err != nil {
			yield(schemas.MessageChunk{}, turn.Err)
		}
	}
}

func (p *ScriptedProvider) Invoke(_ context.Context, messages []schemas.Message, _ schemas.CallOptions) (schemas.Message, error) {
	turn, err := p.next(messages)
	if err != nil {
		return schemas.Message{}, err
	}
	if turn.Err != nil {
		return schemas.Message{}, turn.Err
	}
	if turn.Message != nil {
		return *turn.Message, nil
	}
	var b strings.Builder
	for _, c := range turn.Chunks {
		b.WriteString(c.Content)
	}
	return schemas.Message{Role: schemas.RoleAssistant, Content: b.String()}, nil
}

func (p *ScriptedProvider) BindTools(tools []schemas.ToolDefinition) schemas.ModelProvider {
	bound := *p
	bound.tools = tools
	return &bound
}

func (p *ScriptedProvider) ToolCallsSupported() bool            { return p.Native }
func (p *ScriptedProvider) ToolCallsSupportedInStreaming() bool { return p.NativeStreaming }

// Requests returns the conversations the provider was called with.
func (p *ScriptedProvider) Requests() [][]schemas.Message {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	return append([][]schemas.Message(nil), p.state.requests...)
}

// BoundTools returns the tools bound on each call, parallel to Requests.
func (p *ScriptedProvider) BoundTools() [][]schemas.ToolDefinition {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	return append([][]schemas.ToolDefinition(nil), p.state.bound...)
}

// Remaining is the number of unplayed turns.
func (p *ScriptedProvider) Remaining() int {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	return len(p.state.turns)
}
