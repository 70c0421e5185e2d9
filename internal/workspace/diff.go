package workspace

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff renders the change from before to after as patch text headed by path.
// Identical inputs yield an empty string.
func Diff(path, before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	patch := dmp.PatchToText(dmp.PatchMake(before, diffs))
	return fmt.Sprintf("--- a/%s\n+++ b/%s\n%s", path, path, patch)
}

// DiffStats counts inserted and deleted characters between before and after.
func DiffStats(before, after string) (additions, deletions int) {
	dmp := diffmatchpatch.New()
	for _, d := range dmp.DiffMain(before, after, false) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += len(d.Text)
		}
	}
	return additions, deletions
}
