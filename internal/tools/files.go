package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/workspace"
)

// Tool names as seen by models.
const (
	NameSearchFiles      = "searchFiles"
	NameReadFile         = "readFile"
	NameWriteFile        = "writeFile"
	NameSearchDependency = "searchDependency"
)

// GlobToRegexp translates * and ? into a regular expression; everything else
// matches literally. The expression is unanchored.
func GlobToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return regexp.Compile(b.String())
}

// -- searchFiles --

// SearchFiles lists workspace files whose relative path matches a glob.
// Paths ignored by the workspace .gitignore and the .git directory are skipped.
type SearchFiles struct {
	overlay *workspace.Overlay
	logger  *zap.Logger
}

// NewSearchFiles creates the tool.
func NewSearchFiles(overlay *workspace.Overlay, logger *zap.Logger) *SearchFiles {
	return &SearchFiles{overlay: overlay, logger: logger.Named(NameSearchFiles)}
}

func (t *SearchFiles) Definition() schemas.ToolDefinition {
	return schemas.ToolDefinition{
		Name:        NameSearchFiles,
		Description: "Search the workspace for files whose relative path matches a pattern. * matches any run of characters and ? a single character.",
		Parameters:  objectSchema([]string{"pattern"}, map[string]string{"pattern": "File name or path pattern, e.g. *.java or pom.xml"}),
	}
}

func (t *SearchFiles) Invoke(ctx context.Context, call schemas.ToolCall) (string, error) {
	pattern, err := stringArg(call, "pattern", true)
	if err != nil {
		return "", err
	}
	re, err := GlobToRegexp(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	storage := t.overlay.Storage()
	gitignore := t.loadIgnore(storage)
	seen := make(map[string]bool)
	var matches []string
	err = storage.Walk(func(rel string, info fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" || (gitignore != nil && gitignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if gitignore != nil && gitignore.MatchesPath(rel) {
			return nil
		}
		if re.MatchString(rel) {
			seen[rel] = true
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search workspace: %w", err)
	}
	// Files that exist only as staged edits are visible too.
	for _, rel := range t.overlay.Staged() {
		if !seen[rel] && re.MatchString(rel) {
			matches = append(matches, rel)
		}
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No files found matching %q.", pattern), nil
	}
	sort.Strings(matches)
	return strings.Join(matches, "\n"), nil
}

func (t *SearchFiles) loadIgnore(storage *workspace.Storage) *ignore.GitIgnore {
	content, err := storage.Read(".gitignore")
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(content, "\n")...)
}

// -- readFile --

// ReadFile returns file content, preferring staged edits over durable storage.
type ReadFile struct {
	overlay *workspace.Overlay
	logger  *zap.Logger
}

// NewReadFile creates the tool.
func NewReadFile(overlay *workspace.Overlay, logger *zap.Logger) *ReadFile {
	return &ReadFile{overlay: overlay, logger: logger.Named(NameReadFile)}
}

func (t *ReadFile) Definition() schemas.ToolDefinition {
	return schemas.ToolDefinition{
		Name:        NameReadFile,
		Description: "Read the full content of a workspace file, including edits made earlier in this session.",
		Parameters:  objectSchema([]string{"path"}, map[string]string{"path": "Workspace-relative file path"}),
	}
}

func (t *ReadFile) Invoke(_ context.Context, call schemas.ToolCall) (string, error) {
	path, err := stringArg(call, "path", true)
	if err != nil {
		return "", err
	}
	content, staged, err := t.overlay.Read(path)
	if err != nil {
		if errors.Is(err, workspace.ErrPathEscapesWorkspace) {
			return "", err
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	t.logger.Debug("Read file.", zap.String("path", path), zap.Bool("staged", staged))
	return content, nil
}
