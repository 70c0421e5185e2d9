package cache

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type request struct {
	Model    string            `json:"model"`
	Messages []string          `json:"messages"`
	Meta     map[string]string `json:"meta"`
}

type response struct {
	Content string `json:"content"`
}

func newTestCache(t *testing.T, enabled bool) (*DiskCache, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewDiskCache(fs, "/cache", enabled, zaptest.NewLogger(t)), fs
}

func TestDiskCache_SetThenGetIsIdempotent(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t, true)
	in := request{Model: "m", Messages: []string{"hi"}}

	paths := c.Set(in, response{Content: "hello"})
	require.NotNil(t, paths)

	for i := 0; i < 3; i++ {
		var out response
		require.True(t, c.Get(in, &out))
		assert.Equal(t, "hello", out.Content)
	}

	c.Set(in, response{Content: "updated"})
	var out response
	require.True(t, c.Get(in, &out))
	assert.Equal(t, "updated", out.Content)
}

func TestDiskCache_KeyIsDeterministic(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t, true)
	a := request{Model: "m", Meta: map[string]string{"a": "1", "b": "2", "c": "3"}}
	b := request{Model: "m", Meta: map[string]string{"c": "3", "b": "2", "a": "1"}}

	ka, err := c.Key(a)
	require.NoError(t, err)
	kb, err := c.Key(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Len(t, ka, DefaultHashLength)

	other, err := c.Key(request{Model: "n"})
	require.NoError(t, err)
	assert.NotEqual(t, ka, other)
}

func TestDiskCache_LayoutAndSegments(t *testing.T) {
	t.Parallel()
	c, fs := newTestCache(t, true)

	paths := c.Set(request{Model: "m"}, response{Content: "x"}, "run-1", "fix", "src/Foo.java")
	require.NotNil(t, paths)
	assert.Equal(t, filepath.Join("/cache", "run-1", "fix", "src_Foo.java", "input.json"), paths.Input)
	assert.Equal(t, filepath.Join("/cache", "run-1", "fix", "src_Foo.java", "output.json"), paths.Output)

	exists, err := afero.Exists(fs, paths.Input)
	require.NoError(t, err)
	assert.True(t, exists)

	var out response
	assert.True(t, c.Get(request{Model: "different"}, &out, "run-1", "fix", "src/Foo.java"))
	assert.False(t, c.Get(request{Model: "m"}, &out), "digest key differs from segment key")

	key, err := c.Key(nil, "..", "a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("_", "a"), key)
}

func TestDiskCache_InvalidateAndReset(t *testing.T) {
	t.Parallel()
	c, fs := newTestCache(t, true)
	a, b := request{Model: "a"}, request{Model: "b"}
	c.Set(a, response{Content: "a"})
	c.Set(b, response{Content: "b"})

	c.Invalidate(a)
	c.Invalidate(request{Model: "never-written"})
	var out response
	assert.False(t, c.Get(a, &out))
	assert.True(t, c.Get(b, &out))

	require.NoError(t, c.Reset())
	assert.False(t, c.Get(b, &out))
	exists, _ := afero.DirExists(fs, "/cache")
	assert.False(t, exists)
	require.NoError(t, c.Reset(), "reset tolerates a missing root")
}

func TestDiskCache_Disabled(t *testing.T) {
	t.Parallel()
	c, fs := newTestCache(t, false)
	assert.Nil(t, c.Set(request{}, response{Content: "x"}))

	var out response
	assert.False(t, c.Get(request{}, &out))
	exists, _ := afero.DirExists(fs, "/cache")
	assert.False(t, exists)
}

func TestDiskCache_IOErrorsAreMisses(t *testing.T) {
	t.Parallel()
	base := afero.NewMemMapFs()
	c := NewDiskCache(afero.NewReadOnlyFs(base), "/cache", true, zaptest.NewLogger(t))

	assert.Nil(t, c.Set(request{Model: "m"}, response{Content: "x"}))

	var out response
	assert.False(t, c.Get(request{Model: "m"}, &out))

	// Corrupt output decodes as a miss.
	rw := NewDiskCache(base, "/cache", true, zaptest.NewLogger(t))
	key, err := rw.Key(request{Model: "m"})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(base, filepath.Join("/cache", key, "output.json"), []byte("{not json"), 0o644))
	assert.False(t, rw.Get(request{Model: "m"}, &out))
}

func TestWithHashLength(t *testing.T) {
	t.Parallel()
	c := NewDiskCache(afero.NewMemMapFs(), "/c", true, zaptest.NewLogger(t), WithHashLength(8))
	key, err := c.Key("x")
	require.NoError(t, err)
	assert.Len(t, key, 8)
}
