package tools

import (
	"context"

	"github.com/xkilldash9x/migrator/internal/cache"
)

type searchCacheInput struct {
	ArtifactID string `json:"artifact_id"`
	GroupID    string `json:"group_id"`
	Version    string `json:"version"`
}

// CachedSearcher replays registry lookups from a DiskCache. Only successful
// lookups are recorded; timeouts and failures reach the caller every time.
type CachedSearcher struct {
	inner Searcher
	store *cache.DiskCache
}

// NewCachedSearcher wraps inner.
func NewCachedSearcher(inner Searcher, store *cache.DiskCache) *CachedSearcher {
	return &CachedSearcher{inner: inner, store: store}
}

func (c *CachedSearcher) Search(ctx context.Context, artifactID, groupID, version string) ([]Dependency, error) {
	in := searchCacheInput{ArtifactID: artifactID, GroupID: groupID, Version: version}
	var deps []Dependency
	if c.store.Get(in, &deps, NameSearchDependency) {
		return deps, nil
	}
	deps, err := c.inner.Search(ctx, artifactID, groupID, version)
	if err != nil {
		return nil, err
	}
	c.store.Set(in, deps, NameSearchDependency)
	return deps, nil
}
