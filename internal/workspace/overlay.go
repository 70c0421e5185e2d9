package workspace

import (
	"sort"

	"github.com/xkilldash9x/migrator/internal/cache"
)

// Overlay layers in-flight edits over durable storage. Staged content is
// visible to every later read in the run; durable files change only on Commit.
type Overlay struct {
	storage *Storage
	staged  *cache.Revisioned[string, string]
}

// NewOverlay creates an overlay with no staged edits.
func NewOverlay(storage *Storage) *Overlay {
	return &Overlay{storage: storage, staged: cache.NewRevisioned[string, string]()}
}

// Storage is the durable layer.
func (o *Overlay) Storage() *Storage { return o.storage }

// Read returns the newest staged revision of p, else its durable content.
// staged reports which layer answered.
func (o *Overlay) Read(p string) (content string, staged bool, err error) {
	rel, err := o.storage.Rel(p)
	if err != nil {
		return "", false, err
	}
	if c, ok := o.staged.Get(rel); ok {
		return c, true, nil
	}
	c, err := o.storage.Read(rel)
	return c, false, err
}

// Stage pushes a new revision of p and returns its workspace-relative path.
func (o *Overlay) Stage(p, content string) (string, error) {
	rel, err := o.storage.Rel(p)
	if err != nil {
		return "", err
	}
	o.staged.Set(rel, content)
	return rel, nil
}

// Discard pops up to n revisions of p; cache.AllRevisions drops them all.
func (o *Overlay) Discard(p string, n int) {
	rel, err := o.storage.Rel(p)
	if err != nil {
		return
	}
	o.staged.Invalidate(rel, n)
}

// Staged lists paths with staged revisions, sorted.
func (o *Overlay) Staged() []string {
	keys := o.staged.Keys()
	sort.Strings(keys)
	return keys
}

// Commit writes the newest staged revision of p to durable storage and clears
// its revisions. Committing an unstaged path does nothing.
func (o *Overlay) Commit(p string) error {
	rel, err := o.storage.Rel(p)
	if err != nil {
		return err
	}
	content, ok := o.staged.Get(rel)
	if !ok {
		return nil
	}
	if err := o.storage.Write(rel, content); err != nil {
		return err
	}
	o.staged.Invalidate(rel, cache.AllRevisions)
	return nil
}
