// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"iter"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) LLM() config.LLMConfig {
	args := m.Called()
	return args.Get(0).(config.LLMConfig)
}

func (m *MockConfig) Workflow() config.WorkflowConfig {
	args := m.Called()
	return args.Get(0).(config.WorkflowConfig)
}

func (m *MockConfig) Cache() config.CacheConfig {
	args := m.Called()
	return args.Get(0).(config.CacheConfig)
}

func (m *MockConfig) SolutionServer() config.SolutionServerConfig {
	args := m.Called()
	return args.Get(0).(config.SolutionServerConfig)
}

func (m *MockConfig) DependencyLookup() config.DependencyLookupConfig {
	args := m.Called()
	return args.Get(0).(config.DependencyLookupConfig)
}

func (m *MockConfig) Workspace() config.WorkspaceConfig {
	args := m.Called()
	return args.Get(0).(config.WorkspaceConfig)
}

func (m *MockConfig) Server() config.ServerConfig {
	args := m.Called()
	return args.Get(0).(config.ServerConfig)
}

// --- Setters ---

func (m *MockConfig) SetWorkspaceRoot(root string)      { m.Called(root) }
func (m *MockConfig) SetEnableDiagnostics(enabled bool) { m.Called(enabled) }
func (m *MockConfig) SetCacheEnabled(enabled bool)      { m.Called(enabled) }

// -- Model Provider Mock --

// MockModelProvider mocks schemas.ModelProvider. Stream expectations return a
// []schemas.MessageChunk and an error; the error, if any, is yielded after the chunks.
type MockModelProvider struct {
	mock.Mock
}

func (m *MockModelProvider) Stream(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) iter.Seq2[schemas.MessageChunk, error] {
	args := m.Called(ctx, messages, opts)
	chunks, _ := args.Get(0).([]schemas.MessageChunk)
	err := args.Error(1)
	return func(yield func(schemas.MessageChunk, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if err != nil {
			yield(schemas.MessageChunk{}, err)
		}
	}
}

func (m *MockModelProvider) Invoke(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) (schemas.Message, error) {
	args := m.Called(ctx, messages, opts)
	return args.Get(0).(schemas.Message), args.Error(1)
}

func (m *MockModelProvider) BindTools(tools []schemas.ToolDefinition) schemas.ModelProvider {
	args := m.Called(tools)
	return args.Get(0).(schemas.ModelProvider)
}

func (m *MockModelProvider) ToolCallsSupported() bool {
	return m.Called().Bool(0)
}

func (m *MockModelProvider) ToolCallsSupportedInStreaming() bool {
	return m.Called().Bool(0)
}

// -- Solution Server Mock --

// MockSolutionClient mocks solutionserver.Client.
type MockSolutionClient struct {
	mock.Mock
}

func (m *MockSolutionClient) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *MockSolutionClient) GetBestHint(ctx context.Context, ruleset, violation string) (schemas.Hint, bool) {
	args := m.Called(ctx, ruleset, violation)
	return args.Get(0).(schemas.Hint), args.Bool(1)
}

func (m *MockSolutionClient) CreateIncident(ctx context.Context, incident schemas.Incident) int {
	return m.Called(ctx, incident).Int(0)
}

func (m *MockSolutionClient) CreateMultipleIncidents(ctx context.Context, incidents []schemas.Incident) schemas.IncidentBatch {
	args := m.Called(ctx, incidents)
	return args.Get(0).(schemas.IncidentBatch)
}

func (m *MockSolutionClient) CreateSolution(ctx context.Context, solution schemas.Solution) int {
	return m.Called(ctx, solution).Int(0)
}

func (m *MockSolutionClient) AcceptFile(ctx context.Context, uri, content string) bool {
	return m.Called(ctx, uri, content).Bool(0)
}

func (m *MockSolutionClient) RejectFile(ctx context.Context, uri string) bool {
	return m.Called(ctx, uri).Bool(0)
}

// -- Tool Mock --

// MockTool mocks workflow.Tool.
type MockTool struct {
	mock.Mock
}

func (m *MockTool) Definition() schemas.ToolDefinition {
	return m.Called().Get(0).(schemas.ToolDefinition)
}

func (m *MockTool) Invoke(ctx context.Context, call schemas.ToolCall) (string, error) {
	args := m.Called(ctx, call)
	return args.String(0), args.Error(1)
}
