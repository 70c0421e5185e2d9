// api/schemas/messages.go
package schemas

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"    // Instructions that frame the conversation.
	RoleUser      Role = "user"      // Human (or orchestrator) authored input.
	RoleAssistant Role = "assistant" // Model output.
	RoleTool      Role = "tool"      // Result of a native tool invocation.
)

// ToolCall is a structured request from a model to run a named tool.
// The ID is assigned when the call is proposed and is echoed back on the result message.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is a single entry in a model conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// HasToolCalls reports whether the message proposes at least one tool call.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// ToolCallChunk is a fragment of a natively streamed tool call. Fragments sharing
// an Index belong to the same call; ArgsDelta pieces concatenate into a JSON object.
type ToolCallChunk struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	ArgsDelta string `json:"args_delta,omitempty"`
}

// MessageChunk is one increment of a streamed model response.
type MessageChunk struct {
	Content        string          `json:"content,omitempty"`
	ToolCallChunks []ToolCallChunk `json:"tool_call_chunks,omitempty"`
}

// ToolDefinition describes a tool to a model. Parameters is a JSON schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CallOptions tune a single provider call.
type CallOptions struct {
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	// CacheKey, when set, addresses the response cache by these raw path segments
	// instead of a digest of the request.
	CacheKey []string `json:"-"`
}

// SystemMessage is shorthand for a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage is shorthand for a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
