package llmclient

import (
	"context"
	"iter"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/cache"
)

// cacheInput is what a response is keyed on.
type cacheInput struct {
	Mode     string                   `json:"mode"`
	Model    string                   `json:"model"`
	Messages []schemas.Message        `json:"messages"`
	Tools    []schemas.ToolDefinition `json:"tools,omitempty"`
	Options  schemas.CallOptions      `json:"options"`
}

// Cached replays recorded responses from a DiskCache and records new ones.
// A streamed hit is replayed as one chunk holding the whole response.
type Cached struct {
	inner  schemas.ModelProvider
	model  string
	store  *cache.DiskCache
	tools  []schemas.ToolDefinition
	logger *zap.Logger
}

// NewCached wraps inner. model distinguishes entries of different models.
func NewCached(inner schemas.ModelProvider, model string, store *cache.DiskCache, logger *zap.Logger) *Cached {
	return &Cached{inner: inner, model: model, store: store, logger: logger.Named("llm_cache")}
}

func (c *Cached) key(mode string, messages []schemas.Message, opts schemas.CallOptions) (cacheInput, []string) {
	in := cacheInput{Mode: mode, Model: c.model, Messages: messages, Tools: c.tools, Options: opts}
	var segments []string
	if len(opts.CacheKey) > 0 {
		segments = append(append(segments, opts.CacheKey...), mode)
	}
	return in, segments
}

// Stream replays a recorded response or records the live one once it completes.
func (c *Cached) Stream(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) iter.Seq2[schemas.MessageChunk, error] {
	return func(yield func(schemas.MessageChunk, error) bool) {
		in, segments := c.key("stream", messages, opts)
		var hit schemas.MessageChunk
		if c.store.Get(in, &hit, segments...) {
			c.logger.Debug("Replaying cached stream.", zap.Strings("key", segments))
			yield(hit, nil)
			return
		}

		var recorder chunkRecorder
		for chunk, err := range c.inner.Stream(ctx, messages, opts) {
			if err != nil {
				yield(chunk, err)
				return
			}
			recorder.add(chunk)
			if !yield(chunk, nil) {
				return
			}
		}
		c.store.Set(in, recorder.chunk(), segments...)
	}
}

// Invoke replays a recorded response or records the live one.
func (c *Cached) Invoke(ctx context.Context, messages []schemas.Message, opts schemas.CallOptions) (schemas.Message, error) {
	in, segments := c.key("invoke", messages, opts)
	var hit schemas.Message
	if c.store.Get(in, &hit, segments...) {
		c.logger.Debug("Replaying cached response.", zap.Strings("key", segments))
		return hit, nil
	}
	msg, err := c.inner.Invoke(ctx, messages, opts)
	if err != nil {
		return msg, err
	}
	c.store.Set(in, msg, segments...)
	return msg, nil
}

// BindTools binds the inner provider; the tools become part of the cache key.
func (c *Cached) BindTools(tools []schemas.ToolDefinition) schemas.ModelProvider {
	bound := *c
	bound.inner = c.inner.BindTools(tools)
	bound.tools = tools
	return &bound
}

func (c *Cached) ToolCallsSupported() bool            { return c.inner.ToolCallsSupported() }
func (c *Cached) ToolCallsSupportedInStreaming() bool { return c.inner.ToolCallsSupportedInStreaming() }

// chunkRecorder folds a stream into one equivalent chunk.
type chunkRecorder struct {
	content strings.Builder
	calls   []schemas.ToolCallChunk
	byIndex map[int]int
}

func (r *chunkRecorder) add(chunk schemas.MessageChunk) {
	r.content.WriteString(chunk.Content)
	for _, tc := range chunk.ToolCallChunks {
		if r.byIndex == nil {
			r.byIndex = make(map[int]int)
		}
		pos, ok := r.byIndex[tc.Index]
		if !ok {
			pos = len(r.calls)
			r.byIndex[tc.Index] = pos
			r.calls = append(r.calls, schemas.ToolCallChunk{Index: tc.Index})
		}
		agg := &r.calls[pos]
		if tc.ID != "" {
			agg.ID = tc.ID
		}
		if tc.Name != "" {
			agg.Name = tc.Name
		}
		agg.ArgsDelta += tc.ArgsDelta
	}
}

func (r *chunkRecorder) chunk() schemas.MessageChunk {
	return schemas.MessageChunk{Content: r.content.String(), ToolCallChunks: r.calls}
}
