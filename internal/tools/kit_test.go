package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/embykit/filem/internal/llm"
	"github.com/embykit/filem/internal/log"
)

type echoInput struct {
	Value string `json:"value"`
}

func newTestKit(t *testing.T) *Kit {
	t.Helper()
	kit, err := NewKit(log.NewNop())
	if err != nil {
		t.Fatalf("NewKit() error = %v", err)
	}
	return kit
}

func mustRegister(t *testing.T, kit *Kit, tool *Tool, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := kit.Register(tool); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
}

func TestKitInvoke(t *testing.T) {
	kit := newTestKit(t)
	echo, err := New("echo", "echoes its input", func(_ context.Context, in echoInput) (Result, error) {
		return Success(in.Value, nil), nil
	})
	mustRegister(t, kit, echo, err)

	result := kit.Invoke(context.Background(), llm.ToolCall{Name: "echo", Arguments: `{"value":"hi"}`})
	if result.Status != StatusSuccess {
		t.Fatalf("Invoke() status = %s, error = %+v", result.Status, result.Error)
	}
	if result.Message != "hi" {
		t.Errorf("Invoke() message = %q, want %q", result.Message, "hi")
	}
}

func TestKitInvokeFailures(t *testing.T) {
	kit := newTestKit(t)
	echo, err := New("echo", "echoes its input", func(_ context.Context, in echoInput) (Result, error) {
		return Success(in.Value, nil), nil
	})
	mustRegister(t, kit, echo, err)

	failing, err := New("failing", "always errors", func(_ context.Context, _ echoInput) (Result, error) {
		return Result{}, errors.New("disk on fire")
	})
	mustRegister(t, kit, failing, err)

	panicking, err := New("panicking", "always panics", func(_ context.Context, _ echoInput) (Result, error) {
		panic("unreachable state")
	})
	mustRegister(t, kit, panicking, err)

	tests := []struct {
		name     string
		call     llm.ToolCall
		wantCode string
	}{
		{
			name:     "unknown tool",
			call:     llm.ToolCall{Name: "teleport", Arguments: `{}`},
			wantCode: ErrCodeUnknownTool,
		},
		{
			name:     "arguments not an object",
			call:     llm.ToolCall{Name: "echo", Arguments: `"hi"`},
			wantCode: ErrCodeBadArguments,
		},
		{
			name:     "arguments truncated",
			call:     llm.ToolCall{Name: "echo", Arguments: `{"value":`},
			wantCode: ErrCodeBadArguments,
		},
		{
			name:     "missing required field",
			call:     llm.ToolCall{Name: "echo", Arguments: `{}`},
			wantCode: ErrCodeBadArguments,
		},
		{
			name:     "undeclared field",
			call:     llm.ToolCall{Name: "echo", Arguments: `{"value":"x","volume":11}`},
			wantCode: ErrCodeBadArguments,
		},
		{
			name:     "handler error",
			call:     llm.ToolCall{Name: "failing", Arguments: `{"value":"x"}`},
			wantCode: ErrCodeInternal,
		},
		{
			name:     "handler panic",
			call:     llm.ToolCall{Name: "panicking", Arguments: `{"value":"x"}`},
			wantCode: ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := kit.Invoke(context.Background(), tt.call)
			if result.Status != StatusError {
				t.Fatalf("Invoke() status = %s, want error", result.Status)
			}
			if result.Error == nil || result.Error.Code != tt.wantCode {
				t.Errorf("Invoke() error = %+v, want code %s", result.Error, tt.wantCode)
			}
		})
	}
}

func TestKitRegisterDuplicate(t *testing.T) {
	kit := newTestKit(t)
	first, err := New("echo", "first", func(_ context.Context, in echoInput) (Result, error) {
		return Success(in.Value, nil), nil
	})
	mustRegister(t, kit, first, err)

	second, err := New("echo", "second", func(_ context.Context, in echoInput) (Result, error) {
		return Success(in.Value, nil), nil
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := kit.Register(second); err == nil {
		t.Error("Register() expected error for duplicate name")
	}
}

func TestKitDeclarationsOrder(t *testing.T) {
	kit := newTestKit(t)
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		tool, err := New(name, "test tool "+name, func(_ context.Context, in echoInput) (Result, error) {
			return Success(in.Value, nil), nil
		})
		mustRegister(t, kit, tool, err)
	}

	decls := kit.Declarations()
	if len(decls) != 3 {
		t.Fatalf("Declarations() returned %d decls, want 3", len(decls))
	}
	want := []string{"charlie", "alpha", "bravo"}
	for i, d := range decls {
		if d.Name != want[i] {
			t.Errorf("Declarations()[%d] = %s, want %s", i, d.Name, want[i])
		}
		if d.InputSchema == nil {
			t.Errorf("Declarations()[%d] has nil schema", i)
		}
	}
}
