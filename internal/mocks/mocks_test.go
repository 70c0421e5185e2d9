package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

var (
	_ config.Interface      = (*MockConfig)(nil)
	_ schemas.ModelProvider = (*MockModelProvider)(nil)
	_ schemas.ModelProvider = (*ScriptedProvider)(nil)
)

func TestScriptedProvider_ReplaysTurnsInOrder(t *testing.T) {
	boom := errors.New("boom")
	p := NewScriptedProvider(TextTurn("hello world", 4), Turn{Err: boom})
	ctx := context.Background()

	var got string
	for c, err := range p.Stream(ctx, []schemas.Message{schemas.UserMessage("hi")}, schemas.CallOptions{}) {
		require.NoError(t, err)
		got += c.Content
	}
	assert.Equal(t, "hello world", got)

	_, err := p.Invoke(ctx, nil, schemas.CallOptions{})
	assert.ErrorIs(t, err, boom)

	_, err = p.Invoke(ctx, nil, schemas.CallOptions{})
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Len(t, p.Requests(), 3)
}

func TestScriptedProvider_BindToolsSharesScript(t *testing.T) {
	p := NewScriptedProvider(TextTurn("a", 0), TextTurn("b", 0))
	bound := p.BindTools([]schemas.ToolDefinition{{Name: "readFile"}})

	msg, err := bound.Invoke(context.Background(), nil, schemas.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a", msg.Content)
	assert.Equal(t, 1, p.Remaining())
	assert.Equal(t, "readFile", p.BoundTools()[0][0].Name)
}
