// Package workspace confines durable file access to the project being migrated.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrPathEscapesWorkspace is returned for any path resolving outside the root.
var ErrPathEscapesWorkspace = errors.New("path escapes the workspace root")

// Storage reads and writes workspace files by workspace-relative path.
type Storage struct {
	fs   afero.Fs
	root string
}

// NewStorage serves files under root on base.
func NewStorage(base afero.Fs, root string) (*Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root %q: %w", root, err)
	}
	return &Storage{fs: base, root: filepath.Clean(abs)}, nil
}

// NewOSStorage serves files from the local filesystem.
func NewOSStorage(root string) (*Storage, error) {
	return NewStorage(afero.NewOsFs(), root)
}

// Root is the absolute workspace root.
func (s *Storage) Root() string { return s.root }

// Rel normalizes a file URI, absolute path or relative path into a slash-separated
// workspace-relative path. Anything outside the root is rejected.
func (s *Storage) Rel(p string) (string, error) {
	if strings.HasPrefix(p, "file://") {
		u, err := url.Parse(p)
		if err != nil {
			return "", fmt.Errorf("invalid file uri %q: %w", p, err)
		}
		p = u.Path
	}
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(s.root, filepath.Clean(p))
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrPathEscapesWorkspace, p)
		}
		p = rel
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesWorkspace, p)
	}
	return filepath.ToSlash(clean), nil
}

// Abs resolves a workspace-relative path to its location on the filesystem.
func (s *Storage) Abs(p string) (string, error) {
	rel, err := s.Rel(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// Read returns the durable content of a file.
func (s *Storage) Read(p string) (string, error) {
	abs, err := s.Abs(p)
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(s.fs, abs)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", p, err)
	}
	return string(data), nil
}

// Write replaces the durable content of a file, creating parent directories.
func (s *Storage) Write(p, content string) error {
	abs, err := s.Abs(p)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}
	if err := afero.WriteFile(s.fs, abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}

// Exists reports whether a regular file exists at p.
func (s *Storage) Exists(p string) bool {
	abs, err := s.Abs(p)
	if err != nil {
		return false
	}
	info, err := s.fs.Stat(abs)
	return err == nil && !info.IsDir()
}

// WalkFunc receives the workspace-relative path of each entry.
type WalkFunc func(rel string, d fs.FileInfo) error

// Walk visits every entry below the root in lexical order. Returning
// filepath.SkipDir from fn on a directory skips it.
func (s *Storage) Walk(fn WalkFunc) error {
	return afero.Walk(s.fs, s.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		return fn(filepath.ToSlash(rel), info)
	})
}
