// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/internal/observability"
	"github.com/xkilldash9x/migrator/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve workflow runs to an IDE over HTTP and websockets.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server().Addr
			}

			wf, err := buildWorkflow(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer wf.Close()

			logger.Info("Starting IDE server.", zap.String("addr", addr), zap.String("workspace", cfg.Workspace().Root))
			return server.New(addr, wf, logger).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
