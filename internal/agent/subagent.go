// internal/agent/subagent.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/workflow"
)

const defaultMaxIterations = 10

// SubAgent is a tool-using conversational loop seeded with a system message and
// delegated instructions. Each dispatch starts a fresh conversation.
type SubAgent struct {
	info          AgentInfo
	node          *workflow.Node
	system        string
	maxIterations int
	logger        *zap.Logger
}

// NewSubAgent creates a sub-agent. maxIterations bounds the model turns of one
// dispatch; zero uses the default.
func NewSubAgent(info AgentInfo, node *workflow.Node, system string, maxIterations int, logger *zap.Logger) *SubAgent {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &SubAgent{
		info:          info,
		node:          node,
		system:        system,
		maxIterations: maxIterations,
		logger:        logger.Named(info.Name),
	}
}

// Info describes the agent to the planner.
func (a *SubAgent) Info() AgentInfo { return a.info }

// Run works on instructions until the model stops proposing tool calls, the
// iteration limit is hit or a model call fails. It returns the conversation.
func (a *SubAgent) Run(ctx context.Context, runID string, dispatch int, instructions string) []schemas.Message {
	conversation := []schemas.Message{
		schemas.SystemMessage(a.system),
		schemas.UserMessage(instructions),
	}
	for turn := 0; turn < a.maxIterations; turn++ {
		if ctx.Err() != nil {
			return conversation
		}
		resp := a.node.StreamOrInvoke(ctx, conversation,
			workflow.StreamOptions{EnableTools: true, EmitResponseChunks: true},
			schemas.CallOptions{CacheKey: []string{runID, a.info.Name, fmt.Sprint(dispatch), fmt.Sprint(turn)}})
		if resp == nil {
			return conversation
		}
		conversation = append(conversation, *resp)
		if !resp.HasToolCalls() {
			a.logger.Info("Agent finished.", zap.Int("turns", turn+1))
			return conversation
		}
		conversation = append(conversation, a.node.RunTools(ctx, conversation)...)
	}
	a.logger.Warn("Agent stopped at the iteration limit.", zap.Int("max_iterations", a.maxIterations))
	return conversation
}

func generalFixPrompt(language, migration string) string {
	return fmt.Sprintf(`You are an experienced %[1]s developer migrating an application to %[2]s.
You are given a problem to fix. Use the tools to find and read the files involved, then write the complete new content of every file you change.
Only change what the problem requires. When you are done, reply with a short summary and no tool calls.`, language, migration)
}

func dependencyPrompt(language, migration string) string {
	return fmt.Sprintf(`You are an experienced %[1]s developer who manages build dependencies for a migration to %[2]s.
Use searchDependency to find the correct coordinates and versions, then update the build files with writeFile.
Never invent coordinates that the search did not return. When you are done, reply with a short summary and no tool calls.`, language, migration)
}
