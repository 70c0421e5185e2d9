// File: cmd/migrator/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/migrator/cmd"
)

func main() {
	// Cancel in-flight model calls and interactions on SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cmd.Execute(ctx)
	stop()
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// Graceful shutdown.
		os.Exit(0)
	default:
		os.Exit(1)
	}
}
