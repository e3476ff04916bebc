package llm

import (
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func TestNewOpenAIValidation(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{Model: "deepseek-chat"}); err == nil {
		t.Error("NewOpenAI() expected error without API key")
	}
	if _, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test"}); err == nil {
		t.Error("NewOpenAI() expected error without model")
	}
	if _, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", Model: "deepseek-chat"}); err != nil {
		t.Errorf("NewOpenAI() error = %v", err)
	}
}

func TestSchemaToFunctionParameters(t *testing.T) {
	t.Run("nil schema", func(t *testing.T) {
		params, err := schemaToFunctionParameters(nil)
		if err != nil {
			t.Fatalf("schemaToFunctionParameters(nil) error = %v", err)
		}
		if params["type"] != "object" {
			t.Errorf("params = %v, want bare object schema", params)
		}
	})

	t.Run("inferred schema", func(t *testing.T) {
		type input struct {
			Path string `json:"path"`
		}
		schema, err := jsonschema.For[input](nil)
		if err != nil {
			t.Fatalf("For() error = %v", err)
		}
		params, err := schemaToFunctionParameters(schema)
		if err != nil {
			t.Fatalf("schemaToFunctionParameters() error = %v", err)
		}
		props, ok := params["properties"].(map[string]any)
		if !ok {
			t.Fatalf("params missing properties: %v", params)
		}
		if _, ok := props["path"]; !ok {
			t.Errorf("properties = %v, want path", props)
		}
	})
}

func TestToOpenAIMessagesRoles(t *testing.T) {
	msgs := []Message{
		SystemMessage("rules"),
		UserMessage("organize"),
		AssistantMessage("", []ToolCall{{ID: "c1", Name: "move_file", Arguments: `{}`}}),
		ToolMessage(`{"status":"success"}`, "c1"),
		AssistantMessage(`{"type":"success","data":"done"}`, nil),
	}

	out := toOpenAIMessages(msgs)
	if len(out) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(out), len(msgs))
	}
	if out[0].OfSystem == nil {
		t.Error("message 0 is not a system message")
	}
	if out[1].OfUser == nil {
		t.Error("message 1 is not a user message")
	}
	if out[2].OfAssistant == nil || len(out[2].OfAssistant.ToolCalls) != 1 {
		t.Error("message 2 is not an assistant message with one tool call")
	}
	if out[3].OfTool == nil {
		t.Error("message 3 is not a tool message")
	}
	if out[4].OfAssistant == nil {
		t.Error("message 4 is not an assistant message")
	}
}
