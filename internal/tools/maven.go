package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

// ErrLookupTimedOut is returned when the registry does not answer within the timeout.
var ErrLookupTimedOut = errors.New("dependency lookup timed out")

const defaultLookupTimeout = 10 * time.Second

// Dependency is one artifact coordinate found in the registry.
type Dependency struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version"`
}

func (d Dependency) String() string {
	return d.GroupID + ":" + d.ArtifactID + ":" + d.Version
}

type solrResponse struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			GroupID       string `json:"g"`
			ArtifactID    string `json:"a"`
			Version       string `json:"v"`
			LatestVersion string `json:"latestVersion"`
		} `json:"docs"`
	} `json:"response"`
}

// MavenSearcher queries a Maven Central style Solr search endpoint.
type MavenSearcher struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewMavenSearcher creates a searcher from cfg.
func NewMavenSearcher(cfg config.DependencyLookupConfig, logger *zap.Logger) *MavenSearcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &MavenSearcher{
		endpoint:   cfg.Endpoint,
		timeout:    timeout,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, max(cfg.Burst, 1)),
		logger:     logger.Named("maven_search"),
	}
}

// Search finds artifacts matching the coordinates. groupID and version are
// optional. When a versioned search finds nothing, it is retried without the
// version.
func (m *MavenSearcher) Search(ctx context.Context, artifactID, groupID, version string) ([]Dependency, error) {
	deps, err := m.query(ctx, artifactID, groupID, version)
	if err != nil {
		return nil, err
	}
	if len(deps) == 0 && version != "" {
		m.logger.Debug("No exact match; retrying without version.",
			zap.String("artifact_id", artifactID), zap.String("version", version))
		return m.query(ctx, artifactID, groupID, "")
	}
	return deps, nil
}

func (m *MavenSearcher) query(ctx context.Context, artifactID, groupID, version string) ([]Dependency, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	terms := []string{fmt.Sprintf("a:%q", artifactID)}
	if groupID != "" {
		terms = append(terms, fmt.Sprintf("g:%q", groupID))
	}
	params := url.Values{}
	if version != "" {
		terms = append(terms, fmt.Sprintf("v:%q", version))
		params.Set("core", "gav")
	}
	params.Set("q", strings.Join(terms, " AND "))
	params.Set("rows", "20")
	params.Set("wt", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrLookupTimedOut, m.timeout)
		}
		return nil, fmt.Errorf("dependency lookup failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dependency lookup returned status %d", resp.StatusCode)
	}

	var payload solrResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrLookupTimedOut, m.timeout)
		}
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	deps := make([]Dependency, 0, len(payload.Response.Docs))
	for _, doc := range payload.Response.Docs {
		v := doc.Version
		if v == "" {
			v = doc.LatestVersion
		}
		deps = append(deps, Dependency{GroupID: doc.GroupID, ArtifactID: doc.ArtifactID, Version: v})
	}
	return deps, nil
}

// -- searchDependency --

// Searcher finds dependencies in a package registry.
type Searcher interface {
	Search(ctx context.Context, artifactID, groupID, version string) ([]Dependency, error)
}

// SearchDependency exposes a Searcher to models. Lookup failures are reported
// as text so the model can adjust; they never fail the tool call.
type SearchDependency struct {
	searcher Searcher
	logger   *zap.Logger
}

// NewSearchDependency creates the tool.
func NewSearchDependency(searcher Searcher, logger *zap.Logger) *SearchDependency {
	return &SearchDependency{searcher: searcher, logger: logger.Named(NameSearchDependency)}
}

func (t *SearchDependency) Definition() schemas.ToolDefinition {
	return schemas.ToolDefinition{
		Name:        NameSearchDependency,
		Description: "Search Maven Central for a dependency. Returns matching group:artifact:version coordinates.",
		Parameters: objectSchema([]string{"artifactId"}, map[string]string{
			"artifactId": "Artifact id, e.g. jakarta.jms-api",
			"groupId":    "Optional group id, e.g. jakarta.jms",
			"version":    "Optional version; relaxed automatically when nothing matches",
		}),
	}
}

func (t *SearchDependency) Invoke(ctx context.Context, call schemas.ToolCall) (string, error) {
	artifactID, err := stringArg(call, "artifactId", true)
	if err != nil {
		return "", err
	}
	groupID, err := stringArg(call, "groupId", false)
	if err != nil {
		return "", err
	}
	version, err := stringArg(call, "version", false)
	if err != nil {
		return "", err
	}

	deps, err := t.searcher.Search(ctx, artifactID, groupID, version)
	switch {
	case errors.Is(err, ErrLookupTimedOut):
		t.logger.Warn("Dependency lookup timed out.", zap.String("artifact_id", artifactID))
		return fmt.Sprintf("Dependency search for %s timed out. Try again or continue without it.", artifactID), nil
	case err != nil:
		t.logger.Warn("Dependency lookup failed.", zap.String("artifact_id", artifactID), zap.Error(err))
		return fmt.Sprintf("Dependency search for %s failed: %v", artifactID, err), nil
	case len(deps) == 0:
		return fmt.Sprintf("No dependencies found for artifactId %q.", artifactID), nil
	}
	lines := make([]string, 0, len(deps))
	for _, d := range deps {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n"), nil
}
