// api/schemas/interfaces.go
package schemas

import (
	"context"
	"iter"
)

// ModelProvider is the contract every LLM backend satisfies. Implementations are
// interchangeable; callers never depend on a specific vendor.
type ModelProvider interface {
	// Stream yields response increments in order. A non-nil error ends the sequence.
	Stream(ctx context.Context, messages []Message, opts CallOptions) iter.Seq2[MessageChunk, error]
	// Invoke blocks until the full response is available.
	Invoke(ctx context.Context, messages []Message, opts CallOptions) (Message, error)
	// BindTools returns a provider that advertises the given tools on every call.
	// The receiver is left unchanged.
	BindTools(tools []ToolDefinition) ModelProvider
	// ToolCallsSupported reports native tool-calling support.
	ToolCallsSupported() bool
	// ToolCallsSupportedInStreaming reports whether native tool calls arrive on Stream.
	ToolCallsSupportedInStreaming() bool
}
