package tools

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/workspace"
)

func newWorkspace(t *testing.T, files map[string]string) *workspace.Overlay {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, "/ws/"+name, []byte(content), 0o644))
	}
	storage, err := workspace.NewStorage(fs, "/ws")
	require.NoError(t, err)
	return workspace.NewOverlay(storage)
}

func call(name string, args map[string]any) schemas.ToolCall {
	return schemas.ToolCall{ID: "c1", Name: name, Args: args}
}

func TestGlobToRegexp(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		pattern string
		path    string
		match   bool
	}{
		{"*.java", "src/main/Foo.java", true},
		{"*.java", "src/main/Foo.javax", true},
		{"Foo.java", "src/Foo.java", true},
		{"F?o.java", "src/Fxo.java", true},
		{"pom.xml", "pomxxml", false},
		{"a+b", "a+b.txt", true},
	}
	for _, tc := range testCases {
		re, err := GlobToRegexp(tc.pattern)
		require.NoError(t, err)
		assert.Equal(t, tc.match, re.MatchString(tc.path), "%s vs %s", tc.pattern, tc.path)
	}
}

func TestSearchFiles(t *testing.T) {
	t.Parallel()
	overlay := newWorkspace(t, map[string]string{
		".gitignore":             "target/\n*.log\n",
		"pom.xml":                "<project/>",
		"src/main/Foo.java":      "class Foo {}",
		"src/main/Bar.java":      "class Bar {}",
		"target/classes/X.java":  "generated",
		".git/HEAD.java":         "ref",
		"build.log":              "log",
	})
	_, err := overlay.Stage("src/main/New.java", "class New {}")
	require.NoError(t, err)
	tool := NewSearchFiles(overlay, zaptest.NewLogger(t))

	out, err := tool.Invoke(context.Background(), call(NameSearchFiles, map[string]any{"pattern": "*.java"}))
	require.NoError(t, err)
	assert.Equal(t, "src/main/Bar.java\nsrc/main/Foo.java\nsrc/main/New.java", out)

	out, err = tool.Invoke(context.Background(), call(NameSearchFiles, map[string]any{"pattern": "*.gradle"}))
	require.NoError(t, err)
	assert.Contains(t, out, "No files found")

	_, err = tool.Invoke(context.Background(), call(NameSearchFiles, map[string]any{}))
	assert.ErrorContains(t, err, `"pattern"`)
}

func TestReadFile_PrefersStagedContent(t *testing.T) {
	t.Parallel()
	overlay := newWorkspace(t, map[string]string{"Foo.java": "class Foo {}"})
	tool := NewReadFile(overlay, zaptest.NewLogger(t))

	out, err := tool.Invoke(context.Background(), call(NameReadFile, map[string]any{"path": "Foo.java"}))
	require.NoError(t, err)
	assert.Equal(t, "class Foo {}", out)

	_, err = overlay.Stage("Foo.java", "class Foo { }")
	require.NoError(t, err)
	out, err = tool.Invoke(context.Background(), call(NameReadFile, map[string]any{"path": "Foo.java"}))
	require.NoError(t, err)
	assert.Equal(t, "class Foo { }", out)

	_, err = tool.Invoke(context.Background(), call(NameReadFile, map[string]any{"path": "../../etc/passwd"}))
	assert.ErrorIs(t, err, workspace.ErrPathEscapesWorkspace)

	_, err = tool.Invoke(context.Background(), call(NameReadFile, map[string]any{"path": "Missing.java"}))
	assert.Error(t, err)

	_, err = tool.Invoke(context.Background(), call(NameReadFile, map[string]any{"path": 42}))
	assert.ErrorContains(t, err, "must be a string")
}
