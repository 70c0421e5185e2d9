// internal/autofix/response_test.go
package autofix_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/migrator/internal/autofix"
)

func TestParseFixResponse(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		response string
		expected autofix.FixResponse
	}{
		{
			name:     "Well formed",
			response: "# Reasoning\nSwap javax for jakarta.\n# Updated File\n```\nclass Foo {}\n```\n# Additional Information\nUpdate pom.xml.",
			expected: autofix.FixResponse{Reasoning: "Swap javax for jakarta.", UpdatedFile: "class Foo {}", AdditionalInfo: "Update pom.xml."},
		},
		{
			name:     "Extra blank lines",
			response: "\n\n## Reasoning\n\n\nSwap javax for jakarta.\n\n\n## Updated File\n\n```java\n\nclass Foo {}\n\n```\n\n## Additional Information\n\nUpdate pom.xml.\n\n",
			expected: autofix.FixResponse{Reasoning: "Swap javax for jakarta.", UpdatedFile: "class Foo {}", AdditionalInfo: "Update pom.xml."},
		},
		{
			name:     "Loose headings",
			response: "**REASONING:**\nBecause.\n* updated file\n```\nx\n```\n### additional information:\nNone.",
			expected: autofix.FixResponse{Reasoning: "Because.", UpdatedFile: "x", AdditionalInfo: "None."},
		},
		{
			name:     "Commentary around fences",
			response: "## Updated File\nHere is the file:\n```java\nString s = \"```\";\nclass Foo {}\n```\nHope this helps.",
			expected: autofix.FixResponse{UpdatedFile: "String s = \"```\";\nclass Foo {}"},
		},
		{
			name:     "Missing sections",
			response: "I could not fix this file.",
			expected: autofix.FixResponse{},
		},
		{
			name:     "Empty sections",
			response: "## Reasoning\n## Updated File\n## Additional Information\n",
			expected: autofix.FixResponse{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, autofix.ParseFixResponse(tc.response))
		})
	}
}
