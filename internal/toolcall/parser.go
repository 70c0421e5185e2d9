// Package toolcall reassembles streamed model output into a message, recovering
// tool calls that models without native tool support write as plain text:
//
//	TOOL_CALL
//	```json
//	{"tool_name": "readFile", "args": {"path": "pom.xml"}}
//	```
package toolcall

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/llmutil"
)

const (
	// Marker announces a text tool call.
	Marker = "TOOL_CALL"
	// Fence opens and closes the JSON body of a call.
	Fence = "```"
)

// Mode selects how chunks are interpreted.
type Mode int

const (
	// ModePassThrough forwards chunks verbatim and merges native tool call deltas.
	ModePassThrough Mode = iota
	// ModeSynthesize recovers tool calls from the text protocol.
	ModeSynthesize
)

type state int

const (
	stateContent state = iota
	stateMarkerRead
	stateCallBegin
)

func (s state) String() string {
	switch s {
	case stateMarkerRead:
		return "toolCallMarkerRead"
	case stateCallBegin:
		return "toolCallBegin"
	default:
		return "content"
	}
}

// ChunkHandler receives every chunk that should be surfaced to a human.
type ChunkHandler func(schemas.MessageChunk)

// Option configures a Parser.
type Option func(*Parser)

// WithChunkHandler registers the sink for surfaced chunks.
func WithChunkHandler(h ChunkHandler) Option {
	return func(p *Parser) { p.onChunk = h }
}

// WithIDGenerator replaces the uuid generator used for synthesized call ids.
func WithIDGenerator(gen func() string) Option {
	return func(p *Parser) { p.newID = gen }
}

// nativeCall accumulates the deltas of one natively streamed tool call.
type nativeCall struct {
	id   string
	name string
	args strings.Builder
}

// Parser is an incremental reader over a model response stream. It is not safe
// for concurrent use; feed it from the goroutine consuming the stream.
type Parser struct {
	mode    Mode
	logger  *zap.Logger
	onChunk ChunkHandler
	newID   func() string

	state   state
	pending string
	content strings.Builder
	calls   []schemas.ToolCall

	native map[int]*nativeCall
}

// NewParser creates a parser in the given mode.
func NewParser(mode Mode, logger *zap.Logger, opts ...Option) *Parser {
	p := &Parser{
		mode:    mode,
		logger:  logger.Named("toolcall_parser"),
		onChunk: func(schemas.MessageChunk) {},
		newID:   func() string { return uuid.New().String() },
		native:  make(map[int]*nativeCall),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Write consumes the next chunk of the stream.
func (p *Parser) Write(chunk schemas.MessageChunk) {
	if p.mode == ModePassThrough {
		p.content.WriteString(chunk.Content)
		for _, tc := range chunk.ToolCallChunks {
			p.mergeNative(tc)
		}
		p.onChunk(chunk)
		return
	}

	if chunk.Content == "" {
		return
	}
	p.pending += chunk.Content
	p.advance(false)
}

// Finish flushes buffered prose and returns the reassembled assistant message.
// A tool call block left open at end of stream is discarded.
func (p *Parser) Finish() schemas.Message {
	if p.mode == ModeSynthesize {
		p.advance(true)
	} else {
		p.finishNative()
	}
	return schemas.Message{
		Role:      schemas.RoleAssistant,
		Content:   p.content.String(),
		ToolCalls: p.calls,
	}
}

// advance runs the state machine over the buffered text. Unless final, it stops
// at the point where more input is needed to decide a transition, holding back
// any suffix that could still grow into a delimiter.
func (p *Parser) advance(final bool) {
	for {
		switch p.state {
		case stateContent:
			idx, delim := earliestDelimiter(p.pending)
			if idx < 0 {
				if final {
					p.flush(p.pending)
					p.pending = ""
					return
				}
				keep := partialDelimiterSuffix(p.pending)
				p.flush(p.pending[:len(p.pending)-keep])
				p.pending = p.pending[len(p.pending)-keep:]
				return
			}
			p.flush(p.pending[:idx])
			p.pending = p.pending[idx+len(delim):]
			if delim == Marker {
				p.state = stateMarkerRead
			} else {
				p.state = stateCallBegin
			}

		case stateMarkerRead:
			idx := strings.Index(p.pending, Fence)
			if idx < 0 {
				if final {
					p.logger.Debug("Tool call marker without a body at end of stream.")
					p.pending = ""
					return
				}
				// Text between the marker and the fence is skipped.
				keep := partialSuffix(p.pending, Fence)
				p.pending = p.pending[len(p.pending)-keep:]
				return
			}
			p.pending = p.pending[idx+len(Fence):]
			p.state = stateCallBegin

		case stateCallBegin:
			idx := strings.Index(p.pending, Fence)
			if idx < 0 {
				if final {
					p.logger.Warn("Discarding unterminated tool call block.", zap.Int("length", len(p.pending)))
					p.pending = ""
					p.state = stateContent
				}
				return
			}
			body := p.pending[:idx]
			p.pending = p.pending[idx+len(Fence):]
			p.state = stateContent
			p.parseCall(body)
		}
	}
}

func (p *Parser) flush(text string) {
	if text == "" {
		return
	}
	p.content.WriteString(text)
	p.onChunk(schemas.MessageChunk{Content: text})
}

// parseCall decodes the body of a fenced block. Malformed bodies are logged and dropped.
func (p *Parser) parseCall(body string) {
	raw, err := llmutil.ParseJSONResponse[map[string]json.RawMessage](body)
	if err != nil {
		p.logger.Warn("Dropping tool call with malformed JSON.", zap.Error(err))
		return
	}
	nameRaw, hasName := (*raw)["tool_name"]
	argsRaw, hasArgs := (*raw)["args"]
	if !hasName || !hasArgs {
		p.logger.Warn("Dropping tool call missing tool_name or args.", zap.String("body", llmutil.Truncate(body, 200)))
		return
	}

	var name string
	if err := json.Unmarshal(nameRaw, &name); err != nil || name == "" {
		p.logger.Warn("Dropping tool call with invalid tool_name.", zap.String("body", llmutil.Truncate(body, 200)))
		return
	}
	args := map[string]any{}
	if string(argsRaw) != "null" {
		if err := json.Unmarshal(argsRaw, &args); err != nil {
			p.logger.Warn("Dropping tool call with non-object args.", zap.String("tool", name), zap.Error(err))
			return
		}
	}

	p.calls = append(p.calls, schemas.ToolCall{ID: p.newID(), Name: name, Args: args})
}

func (p *Parser) mergeNative(tc schemas.ToolCallChunk) {
	call, ok := p.native[tc.Index]
	if !ok {
		call = &nativeCall{}
		p.native[tc.Index] = call
	}
	if tc.ID != "" {
		call.id = tc.ID
	}
	if tc.Name != "" {
		call.name = tc.Name
	}
	call.args.WriteString(tc.ArgsDelta)
}

func (p *Parser) finishNative() {
	indexes := make([]int, 0, len(p.native))
	for i := range p.native {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for _, i := range indexes {
		call := p.native[i]
		args := map[string]any{}
		if raw := strings.TrimSpace(call.args.String()); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				p.logger.Warn("Native tool call carried malformed arguments.", zap.String("tool", call.name), zap.Error(err))
				args = map[string]any{}
			}
		}
		id := call.id
		if id == "" {
			id = p.newID()
		}
		p.calls = append(p.calls, schemas.ToolCall{ID: id, Name: call.name, Args: args})
	}
}

// earliestDelimiter finds whichever of Marker or Fence occurs first.
func earliestDelimiter(s string) (int, string) {
	mi := strings.Index(s, Marker)
	fi := strings.Index(s, Fence)
	switch {
	case mi < 0 && fi < 0:
		return -1, ""
	case mi < 0:
		return fi, Fence
	case fi < 0:
		return mi, Marker
	case fi < mi:
		return fi, Fence
	default:
		return mi, Marker
	}
}

// partialDelimiterSuffix is the length of the longest suffix of s that is a
// proper prefix of either delimiter.
func partialDelimiterSuffix(s string) int {
	return max(partialSuffix(s, Marker), partialSuffix(s, Fence))
}

func partialSuffix(s, delim string) int {
	for n := min(len(s), len(delim)-1); n > 0; n-- {
		if strings.HasSuffix(s, delim[:n]) {
			return n
		}
	}
	return 0
}
