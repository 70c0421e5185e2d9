// Package tools implements the capabilities offered to models: workspace file
// search, read and gated write, and package registry lookups.
package tools

import (
	"fmt"

	"github.com/xkilldash9x/migrator/api/schemas"
)

func stringArg(call schemas.ToolCall, name string, required bool) (string, error) {
	v, ok := call.Args[name]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required argument %q", name)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", name, v)
	}
	if required && s == "" {
		return "", fmt.Errorf("argument %q must not be empty", name)
	}
	return s, nil
}

func objectSchema(required []string, props map[string]string) map[string]any {
	properties := make(map[string]any, len(props))
	for name, desc := range props {
		properties[name] = map[string]any{"type": "string", "description": desc}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
