package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/mocks"
	"github.com/xkilldash9x/migrator/internal/workflow"
)

func proposing(calls ...schemas.ToolCall) []schemas.Message {
	return []schemas.Message{
		schemas.UserMessage("fix it"),
		{Role: schemas.RoleAssistant, ToolCalls: calls},
	}
}

func statuses(rec *workflow.Recorder, id string) []schemas.ToolCallStatus {
	var out []schemas.ToolCallStatus
	for _, m := range rec.OfType(schemas.MessageToolCall) {
		ev := m.Data.(schemas.ToolCallEvent)
		if ev.ID == id {
			out = append(out, ev.Status)
		}
	}
	return out
}

func TestRunTools_ExecutesInOrderWithLifecycle(t *testing.T) {
	t.Parallel()
	var order []string
	read := new(mocks.MockTool)
	read.On("Definition").Return(schemas.ToolDefinition{Name: "readFile"})
	read.On("Invoke", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, args.Get(1).(schemas.ToolCall).ID)
	}).Return("contents", nil)
	write := new(mocks.MockTool)
	write.On("Definition").Return(schemas.ToolDefinition{Name: "writeFile"})
	write.On("Invoke", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, args.Get(1).(schemas.ToolCall).ID)
	}).Return("", errors.New("disk full"))

	provider := mocks.NewScriptedProvider()
	rec := workflow.NewRecorder(nil)
	node := workflow.NewNode("agent", provider, workflow.NewToolSet(read, write), rec, zaptest.NewLogger(t))

	results := node.RunTools(context.Background(), proposing(
		schemas.ToolCall{ID: "1", Name: "readFile", Args: map[string]any{"path": "a"}},
		schemas.ToolCall{ID: "2", Name: "writeFile"},
	))

	require.Len(t, results, 2)
	assert.Equal(t, []string{"1", "2"}, order)
	assert.Equal(t, schemas.RoleUser, results[0].Role)
	assert.Contains(t, results[0].Content, "contents")
	assert.Contains(t, results[1].Content, "disk full")

	assert.Equal(t, []schemas.ToolCallStatus{schemas.ToolCallGenerating, schemas.ToolCallRunning, schemas.ToolCallSucceeded}, statuses(rec, "1"))
	assert.Equal(t, []schemas.ToolCallStatus{schemas.ToolCallGenerating, schemas.ToolCallRunning, schemas.ToolCallFailed}, statuses(rec, "2"))
}

func TestRunTools_NativeResultsCarryCallID(t *testing.T) {
	t.Parallel()
	provider := mocks.NewScriptedProvider()
	provider.Native = true
	node := workflow.NewNode("agent", provider, workflow.NewToolSet(readFileTool(t, "data")), nil, zaptest.NewLogger(t))

	results := node.RunTools(context.Background(), proposing(schemas.ToolCall{ID: "abc", Name: "readFile"}))
	require.Len(t, results, 1)
	assert.Equal(t, schemas.Message{Role: schemas.RoleTool, Content: "data", ToolCallID: "abc", Name: "readFile"}, results[0])
}

func TestRunTools_UnknownToolShortCircuits(t *testing.T) {
	t.Parallel()
	read := readFileTool(t, "data")
	provider := mocks.NewScriptedProvider()
	rec := workflow.NewRecorder(nil)
	node := workflow.NewNode("agent", provider, workflow.NewToolSet(read), rec, zaptest.NewLogger(t))

	results := node.RunTools(context.Background(), proposing(
		schemas.ToolCall{ID: "1", Name: "readFile"},
		schemas.ToolCall{ID: "2", Name: "deleteEverything"},
	))

	require.Len(t, results, 1)
	assert.Equal(t, schemas.RoleUser, results[0].Role)
	assert.Contains(t, results[0].Content, `"deleteEverything" does not exist`)
	assert.Contains(t, results[0].Content, "readFile")
	read.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
	assert.Empty(t, rec.OfType(schemas.MessageToolCall))
}

func TestRunTools_UnknownToolAnswersEveryNativeCall(t *testing.T) {
	t.Parallel()
	read := readFileTool(t, "data")
	provider := mocks.NewScriptedProvider()
	provider.Native = true
	node := workflow.NewNode("agent", provider, workflow.NewToolSet(read), nil, zaptest.NewLogger(t))

	results := node.RunTools(context.Background(), proposing(
		schemas.ToolCall{ID: "1", Name: "readFile"},
		schemas.ToolCall{ID: "2", Name: "deleteEverything"},
	))

	require.Len(t, results, 2)
	assert.Equal(t, schemas.RoleTool, results[0].Role)
	assert.Equal(t, "1", results[0].ToolCallID)
	assert.Contains(t, results[0].Content, "Not executed")
	assert.Equal(t, schemas.RoleTool, results[1].Role)
	assert.Equal(t, "2", results[1].ToolCallID)
	assert.Contains(t, results[1].Content, `"deleteEverything" does not exist`)
	read.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestRunTools_NothingToRun(t *testing.T) {
	t.Parallel()
	node := workflow.NewNode("agent", mocks.NewScriptedProvider(), nil, nil, zaptest.NewLogger(t))
	assert.Empty(t, node.RunTools(context.Background(), nil))
	assert.Empty(t, node.RunTools(context.Background(), []schemas.Message{schemas.UserMessage("hi")}))
}

func TestToolSet_SelectAndOrder(t *testing.T) {
	t.Parallel()
	mk := func(name string) workflow.Tool {
		tool := new(mocks.MockTool)
		tool.On("Definition").Return(schemas.ToolDefinition{Name: name})
		return tool
	}
	set := workflow.NewToolSet(mk("searchFiles"), mk("readFile"), mk("writeFile"))

	assert.Equal(t, []string{"searchFiles", "readFile", "writeFile"}, set.Names())
	assert.Equal(t, []string{"readFile", "writeFile"}, set.Select([]string{"File$"}).Names())
	assert.Equal(t, []string{"readFile"}, set.Select([]string{"read"}).Names())
	assert.Equal(t, 0, set.Select([]string{"(writeFile"}).Len(), "invalid patterns match literally")
	assert.Equal(t, 3, set.Select(nil).Len())
}
