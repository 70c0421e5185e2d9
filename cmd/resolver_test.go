// File: cmd/resolver_test.go
package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/migrator/api/schemas"
)

type recordingResolver struct {
	resolutions []schemas.InteractionResolution
}

func (r *recordingResolver) ResolveUserInteraction(res schemas.InteractionResolution) error {
	r.resolutions = append(r.resolutions, res)
	return nil
}

func TestConsoleResolver(t *testing.T) {
	t.Parallel()

	modified := schemas.NewWorkflowMessage(schemas.MessageModifiedFile, schemas.ModifiedFile{
		Path:            "pom.xml",
		Content:         "<project>new</project>",
		OriginalContent: "<project/>",
		UserInteraction: &schemas.UserInteraction{Type: schemas.InteractionModifiedFile},
	})

	t.Run("PromptAccepted", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		r := &recordingResolver{}
		c := newConsoleResolver(strings.NewReader("y\n"), &out, false, zaptest.NewLogger(t))

		c.Handle(modified, r)

		require.Len(t, r.resolutions, 1)
		assert.Equal(t, modified.ID, r.resolutions[0].ID)
		assert.True(t, r.resolutions[0].Response.Accepted())
		assert.Contains(t, out.String(), "modified pom.xml")
		assert.Contains(t, out.String(), "Accept changes to pom.xml? [y/N]")
	})

	t.Run("EOFDeclines", func(t *testing.T) {
		t.Parallel()
		r := &recordingResolver{}
		c := newConsoleResolver(strings.NewReader(""), &bytes.Buffer{}, false, zaptest.NewLogger(t))

		c.Handle(modified, r)

		require.Len(t, r.resolutions, 1)
		require.NotNil(t, r.resolutions[0].Response.YesNo)
		assert.False(t, *r.resolutions[0].Response.YesNo)
	})

	t.Run("AutoAcceptSkipsPrompt", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		r := &recordingResolver{}
		c := newConsoleResolver(strings.NewReader(""), &out, true, zaptest.NewLogger(t))

		c.Handle(modified, r)

		require.Len(t, r.resolutions, 1)
		assert.True(t, r.resolutions[0].Response.Accepted())
		assert.NotContains(t, out.String(), "[y/N]")
	})

	t.Run("TasksEndWithEmptyAnswer", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		r := &recordingResolver{}
		c := newConsoleResolver(strings.NewReader(""), &out, false, zaptest.NewLogger(t))
		msg := schemas.NewWorkflowMessage(schemas.MessageUserInteraction, schemas.UserInteraction{
			Type:          schemas.InteractionTasks,
			SystemMessage: "Report remaining problems.",
		})

		c.Handle(msg, r)

		require.Len(t, r.resolutions, 1)
		assert.Empty(t, r.resolutions[0].Response.Tasks)
		assert.False(t, r.resolutions[0].Reject)
		assert.Contains(t, out.String(), "Report remaining problems.")
	})

	t.Run("Choice", func(t *testing.T) {
		t.Parallel()
		r := &recordingResolver{}
		c := newConsoleResolver(strings.NewReader("2\n"), &bytes.Buffer{}, false, zaptest.NewLogger(t))
		msg := schemas.NewWorkflowMessage(schemas.MessageUserInteraction, schemas.UserInteraction{
			Type:    schemas.InteractionChoice,
			Choices: []string{"keep", "replace"},
		})

		c.Handle(msg, r)

		require.Len(t, r.resolutions, 1)
		require.NotNil(t, r.resolutions[0].Response.Choice)
		assert.Equal(t, 1, *r.resolutions[0].Response.Choice)
	})

	t.Run("ProgressOnly", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		r := &recordingResolver{}
		c := newConsoleResolver(strings.NewReader(""), &out, false, zaptest.NewLogger(t))

		c.Handle(schemas.NewWorkflowMessage(schemas.MessageToolCall, schemas.ToolCallEvent{Name: "readFile", Status: schemas.ToolCallRunning}), r)
		c.Handle(schemas.NewWorkflowMessage(schemas.MessageToolCall, schemas.ToolCallEvent{Name: "readFile", Status: schemas.ToolCallSucceeded}), r)
		c.Handle(schemas.NewWorkflowMessage(schemas.MessageError, schemas.ErrorEvent{Code: schemas.ErrCodeFileRead, Message: "gone"}), r)

		assert.Empty(t, r.resolutions)
		assert.Equal(t, "tool readFile succeeded\nerror [FILE_READ_FAILED] gone\n", out.String())
	})
}
