// internal/agent/planner.go
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/llmutil"
	"github.com/xkilldash9x/migrator/internal/workflow"
)

const (
	labelName         = "Name"
	labelInstructions = "Instructions"
)

var plannerHeadings = llmutil.StrictHeadings(labelName, labelInstructions)

// PlanInput is one planning request: either the tasks of one file or a block of
// free-form follow-up notes.
type PlanInput struct {
	URI            string
	Tasks          []string
	AdditionalInfo string
	History        string
}

// Planner partitions work across a fixed roster of specialist agents.
type Planner struct {
	node   *workflow.Node
	roster []AgentInfo
	logger *zap.Logger
}

// NewPlanner creates a planner choosing among roster.
func NewPlanner(node *workflow.Node, roster []AgentInfo, logger *zap.Logger) *Planner {
	return &Planner{node: node, roster: roster, logger: logger.Named("planner")}
}

// Plan asks the model which agents should handle in and with what instructions.
// A failed call or an unparseable answer yields no delegations.
func (p *Planner) Plan(ctx context.Context, runID string, seq int, in PlanInput) []schemas.DelegationBlock {
	resp := p.node.StreamOrInvoke(ctx, []schemas.Message{schemas.UserMessage(p.prompt(in))},
		workflow.StreamOptions{}, schemas.CallOptions{CacheKey: []string{runID, NodePlanner, fmt.Sprint(seq)}})
	if resp == nil {
		return nil
	}
	blocks := ParsePlannerResponse(resp.Content)
	p.logger.Info("Planned delegations.", zap.String("uri", in.URI), zap.Int("blocks", len(blocks)))
	return blocks
}

func (p *Planner) prompt(in PlanInput) string {
	var b strings.Builder
	b.WriteString("You are the lead of a team of agents migrating an application. Decide which agents should handle the work below.\n\n## Agents\n\n")
	for _, a := range p.roster {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Description)
	}
	if in.History != "" {
		fmt.Fprintf(&b, "\n## Changes made so far\n\n%s\n", in.History)
	}
	if in.URI != "" {
		fmt.Fprintf(&b, "\n## Issues found in %s\n\n", in.URI)
		for _, t := range in.Tasks {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	} else {
		fmt.Fprintf(&b, "\n## Remaining work\n\n%s\n", in.AdditionalInfo)
	}
	b.WriteString(`
Respond with one block per agent you choose. Give each agent only the subset of the work it is suited for.

* Name
<agent name>
* Instructions
<what the agent should do>
`)
	return b.String()
}

// ParsePlannerResponse extracts delegation blocks in order. A block is emitted
// only once it has both a name and instructions. A name heading seen while the
// current block still lacks instructions replaces the pending name rather than
// opening a new block, and repeated instructions under one name overwrite the
// earlier ones.
func ParsePlannerResponse(text string) []schemas.DelegationBlock {
	var (
		blocks             []schemas.DelegationBlock
		name, instructions string
	)
	flush := func() {
		if name != "" && instructions != "" {
			blocks = append(blocks, schemas.DelegationBlock{AgentName: name, Instructions: instructions})
			name, instructions = "", ""
		}
	}
	for _, s := range llmutil.ScanSections(text, plannerHeadings) {
		switch s.Label {
		case labelName:
			flush()
			name = agentName(s.Body)
		case labelInstructions:
			instructions = strings.TrimSpace(s.Body)
		}
	}
	flush()
	return blocks
}

func agentName(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if n := strings.Trim(line, "`*\"' \t:"); n != "" {
			return n
		}
	}
	return ""
}
