// File: cmd/root_test.go
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCommand(t, "", "--version")

	require.NoError(t, err)
	assert.Contains(t, out, "migrator version "+Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	out, err := executeCommand(t, "")

	require.NoError(t, err)
	assert.Contains(t, out, "Migrator applies LLM-driven fixes")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "serve")
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, "", "version")

	require.NoError(t, err)
	assert.Equal(t, "migrator version "+Version+"\n", out)
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	_, err := executeCommand(t, "", "--config", "does-not-exist.yaml", "version")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestRootCmd_ConfigFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"config.yaml": "workflow:\n  max_agent_iterations: 0\n",
	})

	_, err := executeCommand(t, "", "--config", dir+"/config.yaml", "version")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_agent_iterations")
}
