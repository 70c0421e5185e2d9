// internal/llmutil/sections.go
package llmutil

import (
	"strings"
)

// Section is one labeled region of a model response.
type Section struct {
	// Label is the canonical label reported by the HeadingMatcher.
	Label string
	// Body is the text following the heading, up to the next heading. Text written
	// on the heading line itself (e.g. "Name: generalFix") leads the body.
	Body string
}

// HeadingMatcher decides whether a line opens a section. It returns the canonical
// label and any inline text following the label.
type HeadingMatcher func(line string) (label, inline string, ok bool)

// PostProcessor transforms a section body after scanning.
type PostProcessor func(body string) string

// ScanSections splits text into labeled sections in order of appearance. Lines
// before the first heading are dropped. Lines inside fenced code blocks are never
// treated as headings.
func ScanSections(text string, match HeadingMatcher) []Section {
	var (
		sections []Section
		current  *Section
		body     []string
		inFence  bool
	)

	closeCurrent := func() {
		if current != nil {
			current.Body = strings.Join(body, "\n")
			sections = append(sections, *current)
		}
		body = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		} else if !inFence {
			if label, inline, ok := match(line); ok {
				closeCurrent()
				current = &Section{Label: label}
				if inline != "" {
					body = append(body, inline)
				}
				continue
			}
		}
		if current != nil {
			body = append(body, line)
		}
	}
	closeCurrent()
	return sections
}

// LooseHeadings matches the heading styles models actually produce for the given
// labels: markdown "#" headings, "*"/"-" bullets, bold markers, trailing colons,
// any letter case. A bare line without markdown decoration matches only if it
// consists of the label alone or the label followed by a colon.
func LooseHeadings(labels ...string) HeadingMatcher {
	return func(line string) (string, string, bool) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return "", "", false
		}
		stripped := strings.TrimLeft(trimmed, "#*- \t")
		decorated := len(stripped) != len(trimmed)
		lower := strings.ToLower(stripped)

		for _, label := range labels {
			l := strings.ToLower(label)
			if !strings.HasPrefix(lower, l) {
				continue
			}
			rest := stripped[len(l):]
			if rest != "" && !strings.ContainsRune(":* \t", rune(rest[0])) {
				continue // "Reasoningly" is not a heading
			}
			hasColon := strings.HasPrefix(strings.TrimLeft(rest, "* \t"), ":")
			inline := strings.Trim(rest, "*: \t")
			if !decorated && !hasColon && inline != "" {
				continue // plain prose that merely starts with the label
			}
			return label, inline, true
		}
		return "", "", false
	}
}

// StrictHeadings matches a line holding a label and at most one value besides
// markdown decoration. Any text after a colon is the inline value; without a
// colon the value must be a single word. Prose that merely starts with a
// label, such as a bullet reading "Name the queue", never matches.
func StrictHeadings(labels ...string) HeadingMatcher {
	return func(line string) (string, string, bool) {
		stripped := strings.TrimLeft(strings.TrimSpace(line), "#*- \t")
		lower := strings.ToLower(stripped)
		for _, label := range labels {
			l := strings.ToLower(label)
			if !strings.HasPrefix(lower, l) {
				continue
			}
			rest := stripped[len(l):]
			if rest != "" && !strings.ContainsRune(":* \t", rune(rest[0])) {
				continue
			}
			rest = strings.Trim(rest, "* \t")
			switch {
			case rest == "":
				return label, "", true
			case rest[0] == ':':
				return label, strings.Trim(rest[1:], "* \t"), true
			case !strings.ContainsAny(rest, " \t"):
				return label, rest, true
			}
		}
		return "", "", false
	}
}

// TrimToFences returns the text strictly between the first and the last fence
// lines of body. Commentary outside the fences is discarded. A body with fewer
// than two fence lines is returned unchanged.
func TrimToFences(body string) string {
	lines := strings.Split(body, "\n")
	first, last := -1, -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first == last {
		return body
	}
	return strings.Join(lines[first+1:last], "\n")
}

// Collect maps labels to post-processed bodies. When a label repeats, the first
// occurrence wins. Labels absent from the text map to "".
func Collect(sections []Section, post map[string]PostProcessor) map[string]string {
	out := make(map[string]string, len(sections))
	seen := make(map[string]bool, len(sections))
	for _, s := range sections {
		if seen[s.Label] {
			continue
		}
		seen[s.Label] = true
		body := s.Body
		if p, ok := post[s.Label]; ok {
			body = p(body)
		}
		out[s.Label] = strings.TrimSpace(body)
	}
	return out
}
