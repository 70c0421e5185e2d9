// internal/autofix/interfaces.go
package autofix

import "context"

// FixerInterface defines the contract for a component that fixes the incidents
// of a single file. Implementations are pure transforms: they never persist the
// updated file or record solutions.
type FixerInterface interface {
	Fix(ctx context.Context, task FixTask) FixResult
}
