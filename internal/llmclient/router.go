package llmclient

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/cache"
	"github.com/xkilldash9x/migrator/internal/config"
)

// Constructor builds a provider from a model configuration.
type Constructor func(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.ModelProvider, error)

// Router resolves the provider serving each workflow node. Providers are built
// once per configured model and shared between nodes using the same model.
type Router struct {
	logger    *zap.Logger
	cfg       config.LLMConfig
	store     *cache.DiskCache
	construct Constructor

	mu      sync.Mutex
	clients map[string]schemas.ModelProvider
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithResponseCache records and replays responses in store.
func WithResponseCache(store *cache.DiskCache) RouterOption {
	return func(r *Router) { r.store = store }
}

// WithConstructor replaces NewClient.
func WithConstructor(c Constructor) RouterOption {
	return func(r *Router) { r.construct = c }
}

// NewRouter creates a router over cfg.
func NewRouter(cfg config.LLMConfig, logger *zap.Logger, opts ...RouterOption) *Router {
	r := &Router{
		logger:    logger.Named("llm_router"),
		cfg:       cfg,
		construct: NewClient,
		clients:   make(map[string]schemas.ModelProvider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// For returns the provider serving node.
func (r *Router) For(node string) (schemas.ModelProvider, error) {
	name := r.cfg.DefaultModel
	if override, ok := r.cfg.Nodes[node]; ok && override != "" {
		name = override
	}
	modelCfg, err := r.cfg.ModelFor(node)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.clients[name]; ok {
		return p, nil
	}

	p, err := r.construct(modelCfg, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider for model %q: %w", name, err)
	}
	if r.store.Enabled() {
		p = NewCached(p, fmt.Sprintf("%s/%s", modelCfg.Provider, modelCfg.Model), r.store, r.logger)
	}
	r.logger.Debug("Routing node to model.", zap.String("node", node), zap.String("model", name))
	r.clients[name] = p
	return p, nil
}
