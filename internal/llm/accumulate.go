package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidArguments reports accumulated tool-call arguments that do not
// form a JSON object at stream end.
var ErrInvalidArguments = errors.New("tool call arguments are not a JSON object")

// Completion is a fully reconstructed model response.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolCallAccumulator rebuilds complete tool calls from partial deltas.
//
// Deltas merge by index: each of the three string fields concatenates across
// the deltas seen for that index, in arrival order. Indices may appear in any
// order; output order follows first appearance.
type ToolCallAccumulator struct {
	order []int
	parts map[int]*toolCallParts
}

type toolCallParts struct {
	id   strings.Builder
	name strings.Builder
	args strings.Builder
}

// NewToolCallAccumulator creates an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{parts: make(map[int]*toolCallParts)}
}

// Add merges one delta.
func (a *ToolCallAccumulator) Add(d ToolCallDelta) {
	p, ok := a.parts[d.Index]
	if !ok {
		p = &toolCallParts{}
		a.parts[d.Index] = p
		a.order = append(a.order, d.Index)
	}
	p.id.WriteString(d.ID)
	p.name.WriteString(d.Name)
	p.args.WriteString(d.Arguments)
}

// Finalize returns the completed calls in first-appearance order. Each
// call's arguments must parse as a JSON object; otherwise the whole
// accumulation is invalid.
func (a *ToolCallAccumulator) Finalize() ([]ToolCall, error) {
	if len(a.order) == 0 {
		return nil, nil
	}
	calls := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		p := a.parts[idx]
		call := ToolCall{
			ID:        p.id.String(),
			Name:      p.name.String(),
			Arguments: p.args.String(),
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(call.Arguments), &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: call %q (index %d): %q", ErrInvalidArguments, call.Name, idx, call.Arguments)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// Indices returns the indices seen so far, in first-appearance order.
func (a *ToolCallAccumulator) Indices() []int {
	return slices.Clone(a.order)
}

// Reconstruct drains s and returns the final content (text deltas
// concatenated in arrival order) and the finalized tool calls. Fragments are
// consumed exactly once; the stream is closed before returning.
func Reconstruct(s Stream) (Completion, error) {
	defer func() { _ = s.Close() }()

	var content strings.Builder
	acc := NewToolCallAccumulator()

	for s.Next() {
		frag := s.Current()
		content.WriteString(frag.Content)
		for _, d := range frag.ToolCalls {
			acc.Add(d)
		}
	}
	if err := s.Err(); err != nil {
		return Completion{}, fmt.Errorf("reading response stream: %w", err)
	}

	calls, err := acc.Finalize()
	if err != nil {
		return Completion{}, err
	}
	return Completion{Content: content.String(), ToolCalls: calls}, nil
}
