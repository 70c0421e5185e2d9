// File: cmd/bootstrap.go
package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/internal/agent"
	"github.com/xkilldash9x/migrator/internal/cache"
	"github.com/xkilldash9x/migrator/internal/config"
	"github.com/xkilldash9x/migrator/internal/llmclient"
	"github.com/xkilldash9x/migrator/internal/workspace"
)

// Function variables replaced in tests.
var (
	// newProviders builds the model source for a workflow.
	newProviders = func(cfg config.LLMConfig, store *cache.DiskCache, logger *zap.Logger) agent.ProviderSource {
		var opts []llmclient.RouterOption
		if store.Enabled() {
			opts = append(opts, llmclient.WithResponseCache(store))
		}
		return llmclient.NewRouter(cfg, logger, opts...)
	}
	// newStorage opens the workspace being migrated.
	newStorage = workspace.NewOSStorage
)

// openCache returns the on-disk cache. A relative cache dir is resolved
// against the workspace root.
func openCache(cfg config.Interface, logger *zap.Logger) *cache.DiskCache {
	cacheCfg := cfg.Cache()
	dir := cacheCfg.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.Workspace().Root, dir)
	}
	return cache.NewDiskCache(afero.NewOsFs(), dir, cacheCfg.Enabled, logger, cache.WithHashLength(cacheCfg.HashLength))
}

// buildWorkflow wires a workflow from configuration.
func buildWorkflow(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*agent.Workflow, error) {
	storage, err := newStorage(cfg.Workspace().Root)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	store := openCache(cfg, logger)
	var llmStore, toolStore *cache.DiskCache
	if cfg.Cache().LLM {
		llmStore = store
	}
	if cfg.Cache().Tools {
		toolStore = store
	}

	wf := agent.New(logger)
	err = wf.Init(ctx, agent.InitOptions{
		Config:    cfg,
		Providers: newProviders(cfg.LLM(), llmStore, logger),
		Storage:   storage,
		ToolCache: toolStore,
	})
	if err != nil {
		wf.Close()
		return nil, fmt.Errorf("failed to initialize workflow: %w", err)
	}
	return wf, nil
}
