package llm

import (
	"errors"
	"reflect"
	"testing"
)

func TestToolCallAccumulatorSplittingInvariance(t *testing.T) {
	want := []ToolCall{{
		ID:        "call_1",
		Name:      "move_file",
		Arguments: `{"source":"a.mkv","destination":"b.mkv"}`,
	}}

	tests := []struct {
		name   string
		deltas []ToolCallDelta
	}{
		{
			name: "single delta",
			deltas: []ToolCallDelta{
				{Index: 0, ID: "call_1", Name: "move_file", Arguments: `{"source":"a.mkv","destination":"b.mkv"}`},
			},
		},
		{
			name: "arguments split per token",
			deltas: []ToolCallDelta{
				{Index: 0, ID: "call_1", Name: "move_file"},
				{Index: 0, Arguments: `{"source":`},
				{Index: 0, Arguments: `"a.mkv",`},
				{Index: 0, Arguments: `"destination":"b.mkv"`},
				{Index: 0, Arguments: `}`},
			},
		},
		{
			name: "name split too",
			deltas: []ToolCallDelta{
				{Index: 0, ID: "call_1", Name: "move_"},
				{Index: 0, Name: "file"},
				{Index: 0, Arguments: `{"source":"a.mkv",`},
				{Index: 0, Arguments: `"destination":"b.mkv"}`},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewToolCallAccumulator()
			for _, d := range tt.deltas {
				acc.Add(d)
			}
			got, err := acc.Finalize()
			if err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Finalize() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestToolCallAccumulatorInterleavedIndices(t *testing.T) {
	acc := NewToolCallAccumulator()
	// Index 1 appears first; output order follows first appearance.
	acc.Add(ToolCallDelta{Index: 1, ID: "call_b", Name: "delete_file", Arguments: `{"path":`})
	acc.Add(ToolCallDelta{Index: 0, ID: "call_a", Name: "read_structure", Arguments: `{"path":"x"}`})
	acc.Add(ToolCallDelta{Index: 1, Arguments: `"y"}`})

	got, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	want := []ToolCall{
		{ID: "call_b", Name: "delete_file", Arguments: `{"path":"y"}`},
		{ID: "call_a", Name: "read_structure", Arguments: `{"path":"x"}`},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Finalize() = %+v, want %+v", got, want)
	}
}

func TestToolCallAccumulatorInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{"truncated", `{"path":"x"`},
		{"not an object", `["x"]`},
		{"null", `null`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewToolCallAccumulator()
			acc.Add(ToolCallDelta{Index: 0, ID: "c", Name: "t", Arguments: tt.args})
			if _, err := acc.Finalize(); !errors.Is(err, ErrInvalidArguments) {
				t.Errorf("Finalize() error = %v, want ErrInvalidArguments", err)
			}
		})
	}
}

func TestToolCallAccumulatorEmpty(t *testing.T) {
	acc := NewToolCallAccumulator()
	calls, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if calls != nil {
		t.Errorf("Finalize() = %v, want nil", calls)
	}
}

func TestReconstructText(t *testing.T) {
	stream := NewFragmentStream(
		Fragment{Content: `{"type":"succ`},
		Fragment{Content: `ess","data":"done"}`},
	)
	got, err := Reconstruct(stream)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if got.Content != `{"type":"success","data":"done"}` {
		t.Errorf("Content = %q", got.Content)
	}
	if len(got.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %v, want none", got.ToolCalls)
	}
}

func TestReconstructMixed(t *testing.T) {
	stream := NewFragmentStream(
		Fragment{Content: "moving files"},
		Fragment{ToolCalls: []ToolCallDelta{{Index: 0, ID: "c1", Name: "delete_file", Arguments: `{"path":`}}},
		Fragment{ToolCalls: []ToolCallDelta{{Index: 0, Arguments: `"old.mkv"}`}}},
	)
	got, err := Reconstruct(stream)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if got.Content != "moving files" {
		t.Errorf("Content = %q", got.Content)
	}
	want := []ToolCall{{ID: "c1", Name: "delete_file", Arguments: `{"path":"old.mkv"}`}}
	if !reflect.DeepEqual(got.ToolCalls, want) {
		t.Errorf("ToolCalls = %+v, want %+v", got.ToolCalls, want)
	}
}

func TestReconstructStreamError(t *testing.T) {
	streamErr := errors.New("connection reset")
	stream := NewFailingStream(streamErr, Fragment{Content: "partial"})
	if _, err := Reconstruct(stream); !errors.Is(err, streamErr) {
		t.Errorf("Reconstruct() error = %v, want %v", err, streamErr)
	}
}
