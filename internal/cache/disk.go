// Package cache makes model and tool calls replayable across runs and keeps
// in-flight file edits visible within a run.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/internal/observability"
)

const (
	inputFile  = "input.json"
	outputFile = "output.json"

	// DefaultHashLength is the number of hex digits of the digest used as a key.
	DefaultHashLength = 16
)

// canonical serializes with sorted map keys so equal inputs hash equally.
var canonical = jsoniter.Config{
	SortMapKeys:            true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// Paths are the files written for one cache entry.
type Paths struct {
	Input  string
	Output string
}

// DiskCache is a content-addressed store with one directory per key. It assumes
// a single writer per root.
type DiskCache struct {
	fs         afero.Fs
	root       string
	enabled    bool
	hashLength int
	logger     *zap.Logger
}

// Option configures a DiskCache.
type Option func(*DiskCache)

// WithHashLength overrides the digest truncation length.
func WithHashLength(n int) Option {
	return func(c *DiskCache) {
		if n > 0 && n <= sha256.Size*2 {
			c.hashLength = n
		}
	}
}

// NewDiskCache creates a cache rooted at root on fs. A disabled cache misses on
// every read and ignores writes.
func NewDiskCache(fs afero.Fs, root string, enabled bool, logger *zap.Logger, opts ...Option) *DiskCache {
	c := &DiskCache{
		fs:         fs,
		root:       root,
		enabled:    enabled,
		hashLength: DefaultHashLength,
		logger:     logger.Named("disk_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the cache serves reads and accepts writes.
func (c *DiskCache) Enabled() bool { return c != nil && c.enabled }

// Key returns the directory name for input. Raw segments, when given, address
// the entry directly and the input is not hashed.
func (c *DiskCache) Key(input any, segments ...string) (string, error) {
	if len(segments) > 0 {
		clean := make([]string, 0, len(segments))
		for _, s := range segments {
			clean = append(clean, sanitizeSegment(s))
		}
		return filepath.Join(clean...), nil
	}
	data, err := canonical.Marshal(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:c.hashLength], nil
}

// Get decodes the stored output for input into out. Any failure is a miss.
func (c *DiskCache) Get(input any, out any, segments ...string) bool {
	if !c.Enabled() {
		return false
	}
	dir, err := c.dir(input, segments)
	if err != nil {
		c.logger.Warn("Failed to derive cache key.", zap.Error(err))
		observability.CacheLookups.WithLabelValues("error").Inc()
		return false
	}
	data, err := afero.ReadFile(c.fs, filepath.Join(dir, outputFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to read cache entry.", zap.String("dir", dir), zap.Error(err))
		}
		observability.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	if err := canonical.Unmarshal(data, out); err != nil {
		c.logger.Warn("Failed to decode cache entry.", zap.String("dir", dir), zap.Error(err))
		observability.CacheLookups.WithLabelValues("error").Inc()
		return false
	}
	observability.CacheLookups.WithLabelValues("hit").Inc()
	return true
}

// Set stores value for input and returns the written paths, or nil when the
// cache is disabled or the write failed. Failures are logged, not returned.
func (c *DiskCache) Set(input any, value any, segments ...string) *Paths {
	if !c.Enabled() {
		return nil
	}
	dir, err := c.dir(input, segments)
	if err != nil {
		c.logger.Warn("Failed to derive cache key.", zap.Error(err))
		return nil
	}
	inData, err := canonical.MarshalIndent(input, "", "  ")
	if err != nil {
		c.logger.Warn("Failed to encode cache input.", zap.Error(err))
		return nil
	}
	outData, err := canonical.MarshalIndent(value, "", "  ")
	if err != nil {
		c.logger.Warn("Failed to encode cache output.", zap.Error(err))
		return nil
	}
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		c.logger.Warn("Failed to create cache directory.", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	paths := &Paths{Input: filepath.Join(dir, inputFile), Output: filepath.Join(dir, outputFile)}
	if err := afero.WriteFile(c.fs, paths.Input, inData, 0o644); err != nil {
		c.logger.Warn("Failed to write cache input.", zap.String("path", paths.Input), zap.Error(err))
		return nil
	}
	if err := afero.WriteFile(c.fs, paths.Output, outData, 0o644); err != nil {
		c.logger.Warn("Failed to write cache output.", zap.String("path", paths.Output), zap.Error(err))
		return nil
	}
	return paths
}

// Invalidate removes the entry for input. A missing entry is not an error.
func (c *DiskCache) Invalidate(input any, segments ...string) {
	dir, err := c.dir(input, segments)
	if err != nil {
		c.logger.Warn("Failed to derive cache key.", zap.Error(err))
		return
	}
	if err := c.fs.RemoveAll(dir); err != nil {
		c.logger.Warn("Failed to invalidate cache entry.", zap.String("dir", dir), zap.Error(err))
	}
}

// Reset removes every entry under the cache root.
func (c *DiskCache) Reset() error {
	return c.fs.RemoveAll(c.root)
}

func (c *DiskCache) dir(input any, segments []string) (string, error) {
	key, err := c.Key(input, segments...)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.root, key), nil
}

// sanitizeSegment keeps a caller-supplied segment inside its parent directory.
func sanitizeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
