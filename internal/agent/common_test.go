package agent_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/tools"
	"github.com/xkilldash9x/migrator/internal/workspace"
)

// newStorage returns a workspace rooted at /ws holding files.
func newStorage(t *testing.T, files map[string]string) *workspace.Storage {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, "/ws/"+name, []byte(content), 0o644))
	}
	storage, err := workspace.NewStorage(fs, "/ws")
	require.NoError(t, err)
	return storage
}

// fixResponse renders a well-formed fix response.
func fixResponse(reasoning, file, info string) string {
	return fmt.Sprintf("## Reasoning\n%s\n\n## Updated File\n```java\n%s\n```\n\n## Additional Information\n%s\n", reasoning, file, info)
}

// staticProviders serves a fixed provider per node.
type staticProviders map[string]schemas.ModelProvider

func (s staticProviders) For(node string) (schemas.ModelProvider, error) {
	p, ok := s[node]
	if !ok {
		return nil, fmt.Errorf("no provider for %s", node)
	}
	return p, nil
}

type noDependencies struct{}

func (noDependencies) Search(context.Context, string, string, string) ([]tools.Dependency, error) {
	return nil, nil
}
