// File: cmd/cache.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/migrator/internal/observability"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the recorded model and tool responses.",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Delete every cached response.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			store := openCache(cfg, observability.GetLogger())
			if err := store.Reset(); err != nil {
				return fmt.Errorf("failed to reset cache: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cache cleared\n")
			return err
		},
	})
	return cmd
}
