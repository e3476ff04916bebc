// Package orch drives one conversation turn against the model.
//
// A turn is a small state machine: send the history to the model
// (AwaitingModel), reconstruct the streamed response, then either parse the
// final text as the structured answer (Terminal) or execute the requested
// tool calls (ExecutingTools) and resubmit the grown history. Tool failures
// flow back into the conversation as tool results; only transport, parse and
// turn-limit failures surface as errors to the caller.
package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/embykit/filem/internal/aimsg"
	"github.com/embykit/filem/internal/llm"
	"github.com/embykit/filem/internal/tools"
)

// Sentinel errors for turn-level failures.
var (
	// ErrTurnLimit indicates the tool-call cycle cap was reached without a
	// terminal answer.
	ErrTurnLimit = errors.New("turn limit reached")

	// ErrBadAnswer indicates the model's final text was not a valid
	// structured answer.
	ErrBadAnswer = errors.New("model answer is not a valid ai message")
)

// Notifier receives progress events during a turn. Implementations must not
// block for long; they run on the turn's goroutine.
type Notifier interface {
	Notify(msg aimsg.Message)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(msg aimsg.Message)

// Notify calls f.
func (f NotifierFunc) Notify(msg aimsg.Message) { f(msg) }

// Config contains the orchestrator's dependencies.
type Config struct {
	Client llm.Client // required
	Kit    *tools.Kit // required
	Logger *slog.Logger

	// MaxTurns bounds AwaitingModel/ExecutingTools cycles per user message.
	// Zero uses a default of 8.
	MaxTurns int

	// Limiter paces model calls. Nil uses a default of 10 rps, burst 30.
	Limiter *rate.Limiter

	// SystemPrompt overrides the default fixed instruction. Tests use this.
	SystemPrompt string

	// Notifier receives call_tools progress events. Optional.
	Notifier Notifier
}

// Orchestrator owns one conversation's state and runs its turns.
// It is not safe for concurrent use; the owning session serializes turns.
type Orchestrator struct {
	client   llm.Client
	kit      *tools.Kit
	logger   *slog.Logger
	maxTurns int
	limiter  *rate.Limiter
	notifier Notifier
	tracer   trace.Tracer

	history []llm.Message
}

// New creates an orchestrator with the system prompt as the first message.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, errors.New("model client is required")
	}
	if cfg.Kit == nil {
		return nil, errors.New("tool kit is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 8
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = SystemPrompt
	}

	return &Orchestrator{
		client:   cfg.Client,
		kit:      cfg.Kit,
		logger:   logger,
		maxTurns: maxTurns,
		limiter:  limiter,
		notifier: cfg.Notifier,
		tracer:   otel.Tracer("filem/orch"),
		history:  []llm.Message{llm.SystemMessage(prompt)},
	}, nil
}

// History returns a copy of the conversation state.
func (o *Orchestrator) History() []llm.Message {
	out := make([]llm.Message, len(o.history))
	copy(out, o.history)
	return out
}

// Turn appends the user message and runs the state machine until the model
// produces a terminal structured answer or a turn-level failure occurs.
// The history only grows; it is never rewritten.
func (o *Orchestrator) Turn(ctx context.Context, userMessage string) (aimsg.Message, error) {
	ctx, span := o.tracer.Start(ctx, "orch.turn")
	defer span.End()

	o.history = append(o.history, llm.UserMessage(userMessage))

	for cycle := 0; cycle < o.maxTurns; cycle++ {
		completion, err := o.callModel(ctx)
		if err != nil {
			return aimsg.Message{}, err
		}

		if len(completion.ToolCalls) == 0 {
			msg, err := aimsg.Parse(completion.Content)
			if err != nil {
				o.logger.Warn("terminal answer rejected", "error", err, "content", truncate(completion.Content, 200))
				return aimsg.Message{}, fmt.Errorf("%w: %v", ErrBadAnswer, err)
			}
			o.history = append(o.history, llm.AssistantMessage(completion.Content, nil))
			return msg, nil
		}

		o.history = append(o.history, llm.AssistantMessage(completion.Content, completion.ToolCalls))
		o.executeTools(ctx, completion.ToolCalls)
	}

	return aimsg.Message{}, fmt.Errorf("%w: no terminal answer after %d cycles", ErrTurnLimit, o.maxTurns)
}

// callModel invokes the model with the full history and the tool catalog and
// reconstructs the streamed response.
func (o *Orchestrator) callModel(ctx context.Context) (llm.Completion, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return llm.Completion{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	ctx, span := o.tracer.Start(ctx, "orch.model_call")
	defer span.End()

	stream, err := o.client.Complete(ctx, llm.Request{
		Messages: o.history,
		Tools:    o.kit.Declarations(),
	})
	if err != nil {
		return llm.Completion{}, fmt.Errorf("model call: %w", err)
	}

	completion, err := llm.Reconstruct(stream)
	if err != nil {
		return llm.Completion{}, err
	}
	span.SetAttributes(attribute.Int("tool_calls", len(completion.ToolCalls)))
	return completion, nil
}

// executeTools invokes the calls and appends one tool message per call,
// in execution order. Results of failed invocations are appended all the
// same: the model must see them.
func (o *Orchestrator) executeTools(ctx context.Context, calls []llm.ToolCall) {
	for _, call := range OrderCalls(calls) {
		if o.notifier != nil {
			o.notifier.Notify(aimsg.CallTools(call.Name))
		}

		callCtx, span := o.tracer.Start(ctx, "orch.tool_call",
			trace.WithAttributes(attribute.String("tool", call.Name)))
		result := o.kit.Invoke(callCtx, call)
		span.End()

		o.history = append(o.history, llm.ToolMessage(encodeResult(result), call.ID))
	}
}

// encodeResult serializes a tool result for the conversation.
func encodeResult(result tools.Result) string {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","error":{"code":"INTERNAL","message":%q}}`, err.Error())
	}
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// OrderCalls returns the calls in execution order: the model's order, except
// that a call targeting a path nested under another call's target runs
// first. A directory rename would invalidate the paths of files inside it.
func OrderCalls(calls []llm.ToolCall) []llm.ToolCall {
	ordered := make([]llm.ToolCall, len(calls))
	copy(ordered, calls)

	paths := make([]string, len(ordered))
	for i, call := range ordered {
		paths[i] = targetPath(call)
	}

	// Insertion-based stable reorder: move a call ahead of any earlier call
	// whose target is an ancestor of its own.
	for i := 1; i < len(ordered); i++ {
		for j := 0; j < i; j++ {
			if paths[i] != "" && paths[j] != "" && nestedUnder(paths[i], paths[j]) {
				call, p := ordered[i], paths[i]
				copy(ordered[j+1:i+1], ordered[j:i])
				copy(paths[j+1:i+1], paths[j:i])
				ordered[j], paths[j] = call, p
				break
			}
		}
	}
	return ordered
}

// targetPath extracts the path a call operates on: source for moves, path
// otherwise. Unparseable arguments yield "" and keep the model's order.
func targetPath(call llm.ToolCall) string {
	var args struct {
		Source string `json:"source"`
		Path   string `json:"path"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return ""
	}
	if args.Source != "" {
		return args.Source
	}
	return args.Path
}

// nestedUnder reports whether child lies strictly inside ancestor.
func nestedUnder(child, ancestor string) bool {
	child = strings.TrimSuffix(child, "/")
	ancestor = strings.TrimSuffix(ancestor, "/")
	return child != ancestor && strings.HasPrefix(child, ancestor+"/")
}
