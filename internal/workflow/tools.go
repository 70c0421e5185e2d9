package workflow

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
)

// Tool is a capability a model can invoke by name.
type Tool interface {
	Definition() schemas.ToolDefinition
	// Invoke runs the tool. The returned text is handed back to the model.
	Invoke(ctx context.Context, call schemas.ToolCall) (string, error)
}

// ToolSet is an ordered collection of tools with unique names.
type ToolSet struct {
	order  []string
	byName map[string]Tool
}

// NewToolSet builds a set. A later tool with a duplicate name replaces the earlier one.
func NewToolSet(tools ...Tool) *ToolSet {
	s := &ToolSet{byName: make(map[string]Tool)}
	for _, t := range tools {
		name := t.Definition().Name
		if _, exists := s.byName[name]; !exists {
			s.order = append(s.order, name)
		}
		s.byName[name] = t
	}
	return s
}

// Len is the number of tools.
func (s *ToolSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Lookup finds a tool by exact name.
func (s *ToolSet) Lookup(name string) (Tool, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.byName[name]
	return t, ok
}

// Names lists tool names in registration order.
func (s *ToolSet) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Select returns the tools whose names match any of the selector patterns.
// No selectors selects everything. Invalid patterns are treated as literal names.
func (s *ToolSet) Select(selectors []string) *ToolSet {
	if s == nil || len(selectors) == 0 {
		return s
	}
	matchers := make([]*regexp.Regexp, 0, len(selectors))
	for _, sel := range selectors {
		re, err := regexp.Compile(sel)
		if err != nil {
			re = regexp.MustCompile("^" + regexp.QuoteMeta(sel) + "$")
		}
		matchers = append(matchers, re)
	}
	var picked []Tool
	for _, name := range s.order {
		for _, re := range matchers {
			if re.MatchString(name) {
				picked = append(picked, s.byName[name])
				break
			}
		}
	}
	return NewToolSet(picked...)
}

// Definitions describes the tools to a provider.
func (s *ToolSet) Definitions() []schemas.ToolDefinition {
	if s == nil {
		return nil
	}
	defs := make([]schemas.ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		defs = append(defs, s.byName[name].Definition())
	}
	return defs
}

// UnknownToolMessage is the reply for a batch naming a tool that is not registered.
func UnknownToolMessage(call schemas.ToolCall, available []string, native bool) schemas.Message {
	sorted := append([]string(nil), available...)
	sort.Strings(sorted)
	text := fmt.Sprintf("Tool %q does not exist. No tool calls from this turn were executed. Available tools: %s.",
		call.Name, strings.Join(sorted, ", "))
	if native {
		return schemas.Message{Role: schemas.RoleTool, Content: text, ToolCallID: call.ID, Name: call.Name}
	}
	return schemas.UserMessage(text)
}

// unknownToolReplies answers a rejected batch. Native providers expect one
// tool message per call id, so every other call is reported as not executed.
func unknownToolReplies(calls []schemas.ToolCall, unknown int, available []string, native bool) []schemas.Message {
	if !native {
		return []schemas.Message{UnknownToolMessage(calls[unknown], available, false)}
	}
	replies := make([]schemas.Message, 0, len(calls))
	for i, call := range calls {
		if i == unknown {
			replies = append(replies, UnknownToolMessage(call, available, true))
			continue
		}
		replies = append(replies, schemas.Message{
			Role:       schemas.RoleTool,
			Content:    fmt.Sprintf("Not executed: tool %q requested in the same turn does not exist.", calls[unknown].Name),
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}
	return replies
}

func toolFields(call schemas.ToolCall) []zap.Field {
	return []zap.Field{zap.String("tool", call.Name), zap.String("call_id", call.ID)}
}
