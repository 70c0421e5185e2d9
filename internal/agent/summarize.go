// internal/agent/summarize.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/llmutil"
	"github.com/xkilldash9x/migrator/internal/workflow"
)

const (
	labelSummaryInfo    = "Summary of additional information"
	labelSummaryChanges = "Summary of changes"
)

var summaryHeadings = llmutil.LooseHeadings(labelSummaryInfo, labelSummaryChanges)

// Summarizer condenses the fix loop's aggregate into the planner's inputs.
type Summarizer struct {
	node   *workflow.Node
	logger *zap.Logger
}

// NewSummarizer creates a summarizer over node.
func NewSummarizer(node *workflow.Node, logger *zap.Logger) *Summarizer {
	return &Summarizer{node: node, logger: logger.Named("summarizer")}
}

// Summarize returns the condensed additional information and migration history.
// A failed model call degrades to the raw aggregate text.
func (s *Summarizer) Summarize(ctx context.Context, runID string, agg FixAggregate) Summary {
	if agg.AdditionalInfo == "" && agg.Reasoning == "" {
		return Summary{}
	}
	fallback := Summary{AdditionalInfo: agg.AdditionalInfo, History: agg.Reasoning}

	prompt := fmt.Sprintf(`Several files were just changed as part of a migration. Below is the reasoning behind each change and the follow-up notes left for other files.

## Reasoning per file
%s

## Additional information per file
%s

Respond with two sections:

## Summary of additional information
Merge the follow-up notes into one list of remaining work. Drop duplicates and anything already done according to the reasoning. Leave the section empty if nothing remains.

## Summary of changes
Describe the changes already made, in a few sentences.
`, orNone(agg.Reasoning), orNone(agg.AdditionalInfo))

	resp := s.node.StreamOrInvoke(ctx, []schemas.Message{schemas.UserMessage(prompt)},
		workflow.StreamOptions{}, schemas.CallOptions{CacheKey: []string{runID, NodeSummarize}})
	if resp == nil {
		s.logger.Warn("Summarization failed, using the raw aggregate.")
		return fallback
	}
	sections := llmutil.Collect(llmutil.ScanSections(resp.Content, summaryHeadings), nil)
	out := Summary{AdditionalInfo: sections[labelSummaryInfo], History: sections[labelSummaryChanges]}
	if out.History == "" {
		out.History = agg.Reasoning
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
