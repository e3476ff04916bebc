package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool couples a declared input contract with an invocation handler.
//
// The input schema is inferred from the handler's input struct and resolved
// once at construction; the invoker validates every call's arguments against
// it before dispatch.
type Tool struct {
	name        string
	description string
	schema      *jsonschema.Schema
	resolved    *jsonschema.Resolved

	// handler receives the raw argument object after schema validation.
	handler func(ctx context.Context, args json.RawMessage) (Result, error)
}

// Name returns the tool's unique identifier.
func (t *Tool) Name() string { return t.name }

// Description returns the description shown to the model.
func (t *Tool) Description() string { return t.description }

// InputSchema returns the declared input schema.
func (t *Tool) InputSchema() *jsonschema.Schema { return t.schema }

// New creates a tool whose input contract is inferred from In.
//
// The handler returns a Result for outcomes the model should see (including
// tool-level failures) and an error only for system faults.
func New[In any](name, description string, handler func(ctx context.Context, input In) (Result, error)) (*Tool, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("inferring schema for %s: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving schema for %s: %w", name, err)
	}

	erased := func(ctx context.Context, args json.RawMessage) (Result, error) {
		var input In
		if err := json.Unmarshal(args, &input); err != nil {
			return Errorf(ErrCodeBadArguments, "decoding arguments: %v", err), nil
		}
		return handler(ctx, input)
	}

	return &Tool{
		name:        name,
		description: description,
		schema:      schema,
		resolved:    resolved,
		handler:     erased,
	}, nil
}

// validate checks a serialized argument object against the input contract.
func (t *Tool) validate(args string) (json.RawMessage, error) {
	raw := json.RawMessage(args)
	var instance map[string]any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if err := t.resolved.Validate(instance); err != nil {
		return nil, err
	}
	return raw, nil
}
