// api/schemas/workflow.go
package schemas

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowMessageType tags the payload carried by a WorkflowMessage.
type WorkflowMessageType string

const (
	MessageLLMResponseChunk WorkflowMessageType = "LLMResponseChunk" // Data: MessageChunk
	MessageLLMResponse      WorkflowMessageType = "LLMResponse"      // Data: Message
	MessageModifiedFile     WorkflowMessageType = "ModifiedFile"     // Data: ModifiedFile
	MessageToolCall         WorkflowMessageType = "ToolCall"         // Data: ToolCallEvent
	MessageUserInteraction  WorkflowMessageType = "UserInteraction"  // Data: UserInteraction
	MessageError            WorkflowMessageType = "Error"            // Data: ErrorEvent
)

// WorkflowMessage is the uniform event envelope for everything a workflow reports.
// Messages are immutable once emitted.
type WorkflowMessage struct {
	ID        string              `json:"id"`
	Type      WorkflowMessageType `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Data      any                 `json:"data"`
}

// NewWorkflowMessage stamps a payload with a fresh id and the current time.
func NewWorkflowMessage(msgType WorkflowMessageType, data any) WorkflowMessage {
	return WorkflowMessage{
		ID:        uuid.New().String(),
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ToolCallStatus tracks a tool call through its lifecycle.
type ToolCallStatus string

const (
	ToolCallGenerating ToolCallStatus = "generating" // Proposed by the model, not yet started.
	ToolCallRunning    ToolCallStatus = "running"    // Tool is executing.
	ToolCallSucceeded  ToolCallStatus = "succeeded"  // Terminal.
	ToolCallFailed     ToolCallStatus = "failed"     // Terminal.
)

// Terminal reports whether no further transitions are allowed.
func (s ToolCallStatus) Terminal() bool {
	return s == ToolCallSucceeded || s == ToolCallFailed
}

// ToolCallEvent reports a status transition of one tool call.
type ToolCallEvent struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Status ToolCallStatus `json:"status"`
	Result string         `json:"result,omitempty"`
}

// ModifiedFile announces new content for a workspace file. When UserInteraction
// is set, the change is gated on a human decision correlated by the message id.
type ModifiedFile struct {
	Path            string           `json:"path"`
	Content         string           `json:"content"`
	OriginalContent string           `json:"original_content,omitempty"`
	Diff            string           `json:"diff,omitempty"`
	UserInteraction *UserInteraction `json:"user_interaction,omitempty"`
}

// UserInteractionType names the kind of answer a UserInteraction expects.
type UserInteractionType string

const (
	InteractionYesNo        UserInteractionType = "yesNo"
	InteractionChoice       UserInteractionType = "choice"
	InteractionTasks        UserInteractionType = "tasks"
	InteractionModifiedFile UserInteractionType = "modifiedFile"
)

// UserInteraction asks a human for input the workflow cannot proceed without.
type UserInteraction struct {
	Type          UserInteractionType      `json:"type"`
	SystemMessage string                   `json:"system_message,omitempty"`
	Choices       []string                 `json:"choices,omitempty"`
	Response      *UserInteractionResponse `json:"response,omitempty"`
}

// UserInteractionResponse carries the human's answer. Only the field matching
// the interaction type is meaningful.
type UserInteractionResponse struct {
	YesNo  *bool            `json:"yes_no,omitempty"`
	Choice *int             `json:"choice,omitempty"`
	Tasks  []DiagnosticTask `json:"tasks,omitempty"`
}

// Accepted reports an affirmative yes/no answer.
func (r UserInteractionResponse) Accepted() bool {
	return r.YesNo != nil && *r.YesNo
}

// InteractionResolution settles a pending interaction. ID echoes the id of the
// message that raised the interaction.
type InteractionResolution struct {
	ID       string                  `json:"id"`
	Response UserInteractionResponse `json:"response"`
	// Reject cancels the interaction instead of answering it.
	Reject bool   `json:"reject,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ErrorCode classifies user-visible failures.
type ErrorCode string

const (
	ErrCodeLLMCall        ErrorCode = "LLM_CALL_FAILED"
	ErrCodeFileRead       ErrorCode = "FILE_READ_FAILED"
	ErrCodeFileWrite      ErrorCode = "FILE_WRITE_FAILED"
	ErrCodeToolExecution  ErrorCode = "TOOL_EXECUTION_FAILED"
	ErrCodeSolutionServer ErrorCode = "SOLUTION_SERVER_FAILED"
)

// ErrorEvent describes a failure worth showing to a human.
type ErrorEvent struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Operation string    `json:"operation,omitempty"`
	Target    string    `json:"target,omitempty"`
}
