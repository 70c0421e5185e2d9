package toolcall

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xkilldash9x/migrator/api/schemas"
)

// SystemPrompt describes the available tools and the text calling convention to
// a model that has no native tool support.
func SystemPrompt(tools []schemas.ToolDefinition) string {
	var b strings.Builder
	b.WriteString("You have access to the following tools:\n\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		if len(t.Parameters) > 0 {
			if params, err := json.Marshal(t.Parameters); err == nil {
				fmt.Fprintf(&b, "  parameters (JSON schema): %s\n", params)
			}
		}
	}
	b.WriteString("\nTo call a tool, write the token " + Marker + " on its own line followed by a fenced JSON block:\n\n")
	b.WriteString(Marker + "\n" + Fence + "json\n{\"tool_name\": \"<tool name>\", \"args\": {<arguments>}}\n" + Fence + "\n\n")
	b.WriteString("Emit one block per call. Do not use fenced code blocks for anything other than tool calls. ")
	b.WriteString("After your tool calls, stop and wait: results are returned in the next message.\n")
	return b.String()
}

// ResultMessage renders a tool result for a model that cannot receive native tool messages.
func ResultMessage(call schemas.ToolCall, result string) schemas.Message {
	return schemas.UserMessage(fmt.Sprintf("Result of tool call %s (id %s):\n%s", call.Name, call.ID, result))
}
