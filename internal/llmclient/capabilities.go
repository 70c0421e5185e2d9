package llmclient

import "github.com/xkilldash9x/migrator/api/schemas"

// withCapabilities overrides what a provider reports about native tool calling.
type withCapabilities struct {
	schemas.ModelProvider
	toolCalls          *bool
	streamingToolCalls *bool
}

// WithCapabilities applies configured overrides. Nil overrides keep the
// provider's own answers, and a provider with no overrides is returned as is.
func WithCapabilities(p schemas.ModelProvider, toolCalls, streamingToolCalls *bool) schemas.ModelProvider {
	if toolCalls == nil && streamingToolCalls == nil {
		return p
	}
	return &withCapabilities{ModelProvider: p, toolCalls: toolCalls, streamingToolCalls: streamingToolCalls}
}

func (w *withCapabilities) BindTools(tools []schemas.ToolDefinition) schemas.ModelProvider {
	return &withCapabilities{
		ModelProvider:      w.ModelProvider.BindTools(tools),
		toolCalls:          w.toolCalls,
		streamingToolCalls: w.streamingToolCalls,
	}
}

func (w *withCapabilities) ToolCallsSupported() bool {
	if w.toolCalls != nil {
		return *w.toolCalls
	}
	return w.ModelProvider.ToolCallsSupported()
}

func (w *withCapabilities) ToolCallsSupportedInStreaming() bool {
	if !w.ToolCallsSupported() {
		return false
	}
	if w.streamingToolCalls != nil {
		return *w.streamingToolCalls
	}
	return w.ModelProvider.ToolCallsSupportedInStreaming()
}
