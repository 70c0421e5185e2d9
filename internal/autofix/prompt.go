// internal/autofix/prompt.go
package autofix

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/migrator/api/schemas"
)

// PromptOptions describe the migration the fixer works toward.
type PromptOptions struct {
	// Language is the programming language of the workspace, e.g. "Java".
	Language string
	// MigrationHint names the migration, e.g. "JavaEE to Quarkus".
	MigrationHint string
}

func (o PromptOptions) withDefaults() PromptOptions {
	if o.Language == "" {
		o.Language = "Java"
	}
	if o.MigrationHint == "" {
		o.MigrationHint = "the target technology"
	}
	return o
}

func systemPrompt(o PromptOptions) string {
	return fmt.Sprintf(`You are an experienced %s developer who helps migrate applications to %s.
You fix one file at a time. Keep changes minimal, keep the existing style, and never drop unrelated code.`,
		o.Language, o.MigrationHint)
}

// buildPrompt renders the fixed-shape fix request for one file.
func buildPrompt(o PromptOptions, task FixTask, hints []schemas.Hint) string {
	var b strings.Builder
	fence := strings.ToLower(o.Language)

	fmt.Fprintf(&b, "I will give you a %s file for which I want to take one step toward migrating to %s.\n\n", o.Language, o.MigrationHint)
	b.WriteString("Fix all the issues described below in the file.\n\n")
	fmt.Fprintf(&b, "## Input file\n\nFile name: %q\nSource file contents:\n```%s\n%s\n```\n\n", task.Path, fence, task.Content)

	b.WriteString("## Issues\n\n")
	for i, incident := range task.Incidents {
		fmt.Fprintf(&b, "### Issue %d\n", i+1)
		if incident.LineNumber > 0 {
			fmt.Fprintf(&b, "Line number: %d\n", incident.LineNumber)
		}
		fmt.Fprintf(&b, "Issue to fix: %q\n", incident.Message)
		if incident.CodeSnip != "" {
			fmt.Fprintf(&b, "Code:\n```%s\n%s\n```\n", fence, incident.CodeSnip)
		}
		b.WriteString("\n")
	}

	if len(hints) > 0 {
		b.WriteString("## Hints\n\nThese fixes worked for the same issues elsewhere:\n\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "- %s\n", h.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, `# Output Instructions
Structure your output in Markdown format such as:

## Reasoning
Write the step by step reasoning in this markdown section. If you are unsure of a step or reasoning, clearly state you are unsure and why.

## Updated File
`+"```%s"+`
// Write the updated file in this section. If the file should be removed, make the content of the updated file a comment explaining it should be removed.
`+"```"+`

## Additional Information (optional)
If you have any additional details or steps that need to be performed, put it here. Do not summarize the code changes you already made in the Updated File section. Mention only the changes that still need to be made to other files.
`, fence)
	return b.String()
}
