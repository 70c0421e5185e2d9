package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/observability"
	"github.com/xkilldash9x/migrator/internal/toolcall"
)

// StreamOptions control a single StreamOrInvoke call.
type StreamOptions struct {
	// EnableTools offers the node's tools to the model.
	EnableTools bool
	// EmitResponseChunks surfaces response chunks and errors as workflow messages.
	EmitResponseChunks bool
	// ToolSelectors narrows the offered tools by name pattern.
	ToolSelectors []string
}

// Node wraps a model provider with tool binding, fallback and event emission.
// Nodes are composed, not subclassed: workflow steps hold a *Node.
type Node struct {
	name     string
	provider schemas.ModelProvider
	tools    *ToolSet
	emitter  Emitter
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewNode creates a node. tools and emitter may be nil.
func NewNode(name string, provider schemas.ModelProvider, tools *ToolSet, emitter Emitter, logger *zap.Logger) *Node {
	if emitter == nil {
		emitter = Discard
	}
	return &Node{
		name:     name,
		provider: provider,
		tools:    tools,
		emitter:  emitter,
		logger:   logger.Named(name),
		tracer:   observability.Tracer("workflow"),
	}
}

// Name identifies the node in logs, metrics and cache keys.
func (n *Node) Name() string { return n.name }

// Tools returns the tools registered on the node.
func (n *Node) Tools() *ToolSet { return n.tools }

// Emit forwards msg to the node's emitter.
func (n *Node) Emit(ctx context.Context, msg schemas.WorkflowMessage) {
	n.emitter.Emit(ctx, msg)
}

// EmitError surfaces a failure as an Error workflow message.
func (n *Node) EmitError(ctx context.Context, code schemas.ErrorCode, operation, target string, err error) {
	n.Emit(ctx, schemas.NewWorkflowMessage(schemas.MessageError, schemas.ErrorEvent{
		Code:      code,
		Message:   err.Error(),
		Operation: operation,
		Target:    target,
	}))
}

// StreamOrInvoke asks the model for the next message. It never fails loudly: a
// nil result means no usable response, and the caller takes its failure path.
//
//   - tools disabled or none registered: stream, chunks pass through verbatim
//   - native tool support: bind tools, then stream if tool calls stream natively,
//     otherwise invoke once and emit the full response
//   - no native support: prepend a tool-protocol system message, stream, and
//     recover tool calls from the text
func (n *Node) StreamOrInvoke(ctx context.Context, messages []schemas.Message, opts StreamOptions, callOpts schemas.CallOptions) *schemas.Message {
	ctx, span := n.tracer.Start(ctx, "node.stream_or_invoke", trace.WithAttributes(
		attribute.String("node", n.name),
		attribute.Bool("tools", opts.EnableTools),
	))
	defer span.End()

	tools := n.tools.Select(opts.ToolSelectors)
	var (
		msg  schemas.Message
		err  error
		mode string
	)
	switch {
	case !opts.EnableTools || tools.Len() == 0:
		mode = "stream"
		msg, err = n.stream(ctx, n.provider, messages, callOpts, toolcall.ModePassThrough, opts.EmitResponseChunks)
	case n.provider.ToolCallsSupported():
		bound := n.provider.BindTools(tools.Definitions())
		if bound.ToolCallsSupportedInStreaming() {
			mode = "stream_tools"
			msg, err = n.stream(ctx, bound, messages, callOpts, toolcall.ModePassThrough, opts.EmitResponseChunks)
		} else {
			mode = "invoke"
			msg, err = bound.Invoke(ctx, messages, callOpts)
			if err == nil && opts.EmitResponseChunks {
				n.Emit(ctx, schemas.NewWorkflowMessage(schemas.MessageLLMResponse, msg))
			}
		}
	default:
		mode = "synthesized"
		withProtocol := make([]schemas.Message, 0, len(messages)+1)
		withProtocol = append(withProtocol, schemas.SystemMessage(toolcall.SystemPrompt(tools.Definitions())))
		withProtocol = append(withProtocol, messages...)
		msg, err = n.stream(ctx, n.provider, withProtocol, callOpts, toolcall.ModeSynthesize, opts.EmitResponseChunks)
	}

	if err != nil {
		observability.LLMCalls.WithLabelValues(n.name, mode, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Error("Model call failed.", zap.String("mode", mode), zap.Error(err))
		if opts.EmitResponseChunks {
			n.EmitError(ctx, schemas.ErrCodeLLMCall, n.name, "", err)
		}
		return nil
	}
	observability.LLMCalls.WithLabelValues(n.name, mode, "ok").Inc()
	n.logger.Debug("Model call complete.",
		zap.String("mode", mode),
		zap.Int("content_length", len(msg.Content)),
		zap.Int("tool_calls", len(msg.ToolCalls)))
	return &msg
}

func (n *Node) stream(ctx context.Context, provider schemas.ModelProvider, messages []schemas.Message, callOpts schemas.CallOptions, mode toolcall.Mode, emit bool) (schemas.Message, error) {
	parser := toolcall.NewParser(mode, n.logger, toolcall.WithChunkHandler(func(c schemas.MessageChunk) {
		if emit {
			n.Emit(ctx, schemas.NewWorkflowMessage(schemas.MessageLLMResponseChunk, c))
		}
	}))
	for chunk, err := range provider.Stream(ctx, messages, callOpts) {
		if err != nil {
			return schemas.Message{}, fmt.Errorf("stream from %s failed: %w", n.name, err)
		}
		parser.Write(chunk)
	}
	if err := ctx.Err(); err != nil {
		return schemas.Message{}, err
	}
	return parser.Finish(), nil
}

// RunTools executes the tool calls proposed by the last message, one at a time
// in proposal order, and returns the result messages. Results are native tool
// messages when the provider supports them and plain user messages otherwise.
// If any call names an unknown tool, nothing runs and an explanatory message
// is returned instead, along with a not-executed reply for every other call
// id when results are native.
func (n *Node) RunTools(ctx context.Context, messages []schemas.Message) []schemas.Message {
	if len(messages) == 0 {
		return nil
	}
	last := messages[len(messages)-1]
	if !last.HasToolCalls() {
		return nil
	}
	native := n.provider.ToolCallsSupported()

	for i, call := range last.ToolCalls {
		if _, ok := n.tools.Lookup(call.Name); !ok {
			n.logger.Warn("Model requested an unknown tool; skipping batch.", toolFields(call)...)
			observability.ToolCalls.WithLabelValues(call.Name, "unknown").Inc()
			return unknownToolReplies(last.ToolCalls, i, n.tools.Names(), native)
		}
	}

	results := make([]schemas.Message, 0, len(last.ToolCalls))
	for _, call := range last.ToolCalls {
		tool, _ := n.tools.Lookup(call.Name)
		n.emitToolStatus(ctx, call, schemas.ToolCallGenerating, "")
		n.emitToolStatus(ctx, call, schemas.ToolCallRunning, "")

		output, status := n.invokeTool(ctx, tool, call)
		n.emitToolStatus(ctx, call, status, output)
		observability.ToolCalls.WithLabelValues(call.Name, string(status)).Inc()

		if native {
			results = append(results, schemas.Message{
				Role:       schemas.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		} else {
			results = append(results, toolcall.ResultMessage(call, output))
		}
	}
	return results
}

func (n *Node) invokeTool(ctx context.Context, tool Tool, call schemas.ToolCall) (string, schemas.ToolCallStatus) {
	ctx, span := n.tracer.Start(ctx, "node.tool", trace.WithAttributes(attribute.String("tool", call.Name)))
	defer span.End()

	output, err := tool.Invoke(ctx, call)
	if err != nil {
		span.RecordError(err)
		n.logger.Warn("Tool call failed.", append(toolFields(call), zap.Error(err))...)
		return fmt.Sprintf("Error: %v", err), schemas.ToolCallFailed
	}
	return output, schemas.ToolCallSucceeded
}

func (n *Node) emitToolStatus(ctx context.Context, call schemas.ToolCall, status schemas.ToolCallStatus, result string) {
	n.Emit(ctx, schemas.NewWorkflowMessage(schemas.MessageToolCall, schemas.ToolCallEvent{
		ID:     call.ID,
		Name:   call.Name,
		Args:   call.Args,
		Status: status,
		Result: result,
	}))
}
