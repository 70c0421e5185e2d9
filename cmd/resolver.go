// File: cmd/resolver.go
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/workspace"
)

// interactionResolver is the subset of agent.Workflow the console needs.
type interactionResolver interface {
	ResolveUserInteraction(res schemas.InteractionResolution) error
}

// consoleResolver prints workflow progress and answers interactions from a
// terminal, or accepts everything when autoAccept is set.
type consoleResolver struct {
	in         *bufio.Reader
	out        io.Writer
	autoAccept bool
	logger     *zap.Logger
}

func newConsoleResolver(in io.Reader, out io.Writer, autoAccept bool, logger *zap.Logger) *consoleResolver {
	return &consoleResolver{
		in:         bufio.NewReader(in),
		out:        out,
		autoAccept: autoAccept,
		logger:     logger.Named("console"),
	}
}

// Handle reports msg and settles any interaction it raises.
func (c *consoleResolver) Handle(msg schemas.WorkflowMessage, r interactionResolver) {
	switch data := msg.Data.(type) {
	case schemas.ToolCallEvent:
		if data.Status.Terminal() {
			fmt.Fprintf(c.out, "tool %s %s\n", data.Name, data.Status)
		}
	case schemas.ErrorEvent:
		fmt.Fprintf(c.out, "error [%s] %s\n", data.Code, data.Message)
	case schemas.ModifiedFile:
		added, removed := workspace.DiffStats(data.OriginalContent, data.Content)
		fmt.Fprintf(c.out, "modified %s (+%d -%d)\n", data.Path, added, removed)
		if data.UserInteraction != nil {
			c.resolve(r, msg.ID, c.answer(*data.UserInteraction, fmt.Sprintf("Accept changes to %s?", data.Path)))
		}
	case schemas.UserInteraction:
		c.resolve(r, msg.ID, c.answer(data, data.SystemMessage))
	}
}

func (c *consoleResolver) answer(ui schemas.UserInteraction, question string) schemas.UserInteractionResponse {
	switch ui.Type {
	case schemas.InteractionTasks:
		// The console cannot supply new tasks, so the diagnostics loop ends here.
		if question != "" {
			fmt.Fprintln(c.out, question)
		}
		return schemas.UserInteractionResponse{}
	case schemas.InteractionChoice:
		choice := c.choose(question, ui.Choices)
		return schemas.UserInteractionResponse{Choice: &choice}
	default:
		yes := c.confirm(question)
		return schemas.UserInteractionResponse{YesNo: &yes}
	}
}

func (c *consoleResolver) confirm(question string) bool {
	if c.autoAccept {
		return true
	}
	fmt.Fprintf(c.out, "%s [y/N] ", question)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (c *consoleResolver) choose(question string, choices []string) int {
	if c.autoAccept || len(choices) == 0 {
		return 0
	}
	fmt.Fprintln(c.out, question)
	for i, choice := range choices {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, choice)
	}
	fmt.Fprint(c.out, "> ")
	line, _ := c.in.ReadString('\n')
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(choices) {
		return 0
	}
	return n - 1
}

func (c *consoleResolver) resolve(r interactionResolver, id string, response schemas.UserInteractionResponse) {
	err := r.ResolveUserInteraction(schemas.InteractionResolution{ID: id, Response: response})
	if err != nil {
		c.logger.Warn("Failed to resolve interaction.", zap.String("id", id), zap.Error(err))
	}
}
