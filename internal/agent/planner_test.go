package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/agent"
	"github.com/xkilldash9x/migrator/internal/mocks"
	"github.com/xkilldash9x/migrator/internal/workflow"
)

func TestParsePlannerResponse(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		response string
		expected []schemas.DelegationBlock
	}{
		{
			name:     "Two blocks",
			response: "* Name\ngeneralFix\n* Instructions\nFix Foo.java imports.\n* Name\njavaDependency\n* Instructions\nAdd jakarta.jms-api.",
			expected: []schemas.DelegationBlock{
				{AgentName: "generalFix", Instructions: "Fix Foo.java imports."},
				{AgentName: "javaDependency", Instructions: "Add jakarta.jms-api."},
			},
		},
		{
			name:     "Inline names",
			response: "## Name: `generalFix`\n## Instructions\nLine one.\nLine two.",
			expected: []schemas.DelegationBlock{{AgentName: "generalFix", Instructions: "Line one.\nLine two."}},
		},
		{
			name:     "Name without instructions is replaced",
			response: "* Name generalFix\n* Name javaDependency\n* Instructions\nUpgrade the parent pom.",
			expected: []schemas.DelegationBlock{{AgentName: "javaDependency", Instructions: "Upgrade the parent pom."}},
		},
		{
			name:     "Later instructions override",
			response: "* Name: generalFix\n* Instructions\nfirst\n* Instructions\nsecond",
			expected: []schemas.DelegationBlock{{AgentName: "generalFix", Instructions: "second"}},
		},
		{
			name:     "Bullets inside instructions",
			response: "* Name\ngeneralFix\n* Instructions\n- Name the queue jakarta/Orders.\n- Instructions for the MDB are in the README.",
			expected: []schemas.DelegationBlock{{
				AgentName:    "generalFix",
				Instructions: "- Name the queue jakarta/Orders.\n- Instructions for the MDB are in the README.",
			}},
		},
		{
			name:     "Instructions without name",
			response: "* Instructions\norphan",
			expected: nil,
		},
		{
			name:     "No blocks",
			response: "Nothing to do here.",
			expected: nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, agent.ParsePlannerResponse(tc.response))
		})
	}
}

func TestGroupTasks(t *testing.T) {
	t.Parallel()
	groups := agent.GroupTasks([]schemas.DiagnosticTask{
		{URI: "b.java", Task: "zeta"},
		{URI: "a.java", Task: "beta"},
		{URI: "b.java", Task: "alpha"},
		{URI: "a.java", Task: "alpha"},
		{URI: "a.java", Task: "beta"},
		{URI: "c.java", Task: ""},
	})
	assert.Equal(t, []schemas.TaskGroup{
		{URI: "a.java", Tasks: []string{"alpha", "beta"}},
		{URI: "b.java", Tasks: []string{"alpha", "zeta"}},
	}, groups)
	assert.Empty(t, agent.GroupTasks(nil))
}

func TestPlanner_PromptListsRosterAndTasks(t *testing.T) {
	t.Parallel()
	provider := mocks.NewScriptedProvider(mocks.TextTurn("* Name generalFix\n* Instructions\nFix it.", 5))
	logger := zaptest.NewLogger(t)
	planner := agent.NewPlanner(workflow.NewNode(agent.NodePlanner, provider, nil, nil, logger),
		[]agent.AgentInfo{{Name: "generalFix", Description: "edits files"}, {Name: "javaDependency", Description: "edits pom.xml"}},
		logger)

	blocks := planner.Plan(context.Background(), "run", 0, agent.PlanInput{
		URI:     "Foo.java",
		Tasks:   []string{"cannot find symbol Queue"},
		History: "Replaced javax imports.",
	})

	assert.Equal(t, []schemas.DelegationBlock{{AgentName: "generalFix", Instructions: "Fix it."}}, blocks)
	requests := provider.Requests()
	require.Len(t, requests, 1)
	prompt := requests[0][0].Content
	assert.Contains(t, prompt, "- generalFix: edits files")
	assert.Contains(t, prompt, "- javaDependency: edits pom.xml")
	assert.Contains(t, prompt, "## Issues found in Foo.java")
	assert.Contains(t, prompt, "- cannot find symbol Queue")
	assert.Contains(t, prompt, "Replaced javax imports.")
}

func TestPlanner_FailedCallPlansNothing(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)
	planner := agent.NewPlanner(workflow.NewNode(agent.NodePlanner, mocks.NewScriptedProvider(), nil, nil, logger), nil, logger)
	assert.Empty(t, planner.Plan(context.Background(), "run", 0, agent.PlanInput{AdditionalInfo: "x"}))
}
