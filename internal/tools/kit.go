// Package tools provides the tool catalog and invoker for filem.
//
// A Kit holds the registered tools, exposes their declared contracts to the
// model, and dispatches reconstructed tool calls. Handler failures and
// invalid arguments become error Results — part of the conversation, never
// an abort of the turn.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/embykit/filem/internal/llm"
)

// Kit is the tool catalog and invoker.
type Kit struct {
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// NewKit creates an empty kit.
func NewKit(logger *slog.Logger) (*Kit, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Kit{
		tools:  make(map[string]*Tool),
		logger: logger,
	}, nil
}

// Register adds a tool. Duplicate names are rejected.
func (k *Kit) Register(t *Tool) error {
	if _, exists := k.tools[t.Name()]; exists {
		return fmt.Errorf("tool %s already registered", t.Name())
	}
	k.tools[t.Name()] = t
	k.order = append(k.order, t.Name())
	return nil
}

// Get returns a registered tool by name.
func (k *Kit) Get(name string) (*Tool, bool) {
	t, ok := k.tools[name]
	return t, ok
}

// Declarations returns the catalog in registration order, in the shape sent
// to the model.
func (k *Kit) Declarations() []llm.ToolDecl {
	decls := make([]llm.ToolDecl, 0, len(k.order))
	for _, name := range k.order {
		t := k.tools[name]
		decls = append(decls, llm.ToolDecl{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return decls
}

// Invoke validates the call's arguments against the declared contract and
// dispatches it. Every failure mode — unknown tool, malformed arguments,
// handler error, handler panic — is normalized into an error Result.
func (k *Kit) Invoke(ctx context.Context, call llm.ToolCall) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("tool handler panic", "tool", call.Name, "panic", r)
			result = Errorf(ErrCodeInternal, "tool %s failed unexpectedly", call.Name)
		}
	}()

	t, ok := k.tools[call.Name]
	if !ok {
		return Errorf(ErrCodeUnknownTool, "unknown tool: %s", call.Name)
	}

	args, err := t.validate(call.Arguments)
	if err != nil {
		k.logger.Warn("tool arguments rejected", "tool", call.Name, "error", err)
		return Errorf(ErrCodeBadArguments, "invalid arguments for %s: %v", call.Name, err)
	}

	k.logger.Info("invoking tool", "tool", call.Name, "call_id", call.ID)
	result, err = t.handler(ctx, args)
	if err != nil {
		k.logger.Error("tool handler error", "tool", call.Name, "error", err)
		return Errorf(ErrCodeInternal, "tool %s failed: %v", call.Name, err)
	}
	return result
}
