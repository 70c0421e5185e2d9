// internal/llmutil/parser.go
package llmutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSONResponse decodes model-written JSON into T. Fences, language tags and
// chatter around the value are dropped by narrowing to the outermost bracket
// pair of whichever kind opens first.
func ParseJSONResponse[T any](response string) (*T, error) {
	candidate := narrowJSON(response)
	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("failed to decode JSON from model response: %w (extracted: %s)", err, Truncate(candidate, 500))
	}
	return &result, nil
}

func narrowJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return strings.TrimSpace(s)
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return strings.TrimSpace(s[start:])
	}
	return s[start : end+1]
}

// Truncate shortens s to at most maxLen bytes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
