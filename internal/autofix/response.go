// internal/autofix/response.go
package autofix

import (
	"github.com/xkilldash9x/migrator/internal/llmutil"
)

// Section labels of a fix response.
const (
	LabelReasoning      = "Reasoning"
	LabelUpdatedFile    = "Updated File"
	LabelAdditionalInfo = "Additional Information"
)

var fixHeadings = llmutil.LooseHeadings(LabelReasoning, LabelUpdatedFile, LabelAdditionalInfo)

// ParseFixResponse splits a model response into its labeled sections. Missing
// sections are empty. The updated file is the text between the first and last
// fence of its section; commentary around the fences is dropped.
func ParseFixResponse(text string) FixResponse {
	sections := llmutil.Collect(llmutil.ScanSections(text, fixHeadings), map[string]llmutil.PostProcessor{
		LabelUpdatedFile: llmutil.TrimToFences,
	})
	return FixResponse{
		Reasoning:      sections[LabelReasoning],
		UpdatedFile:    sections[LabelUpdatedFile],
		AdditionalInfo: sections[LabelAdditionalInfo],
	}
}
