// internal/agent/errors.go
package agent

import "errors"

var (
	// ErrNotInitialized is returned when Run is called before Init.
	ErrNotInitialized = errors.New("workflow is not initialized")
	// ErrRunInProgress is returned when Run is called while another run is active.
	ErrRunInProgress = errors.New("a workflow run is already in progress")
	// ErrUnknownInteraction is returned when a resolution names no pending interaction.
	ErrUnknownInteraction = errors.New("no pending interaction with that id")
)
