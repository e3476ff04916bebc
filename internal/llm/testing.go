package llm

import (
	"context"
	"errors"
	"sync"
)

// FragmentStream is an in-memory Stream over a fixed fragment slice.
// A single-element slice models a non-streaming backend.
type FragmentStream struct {
	fragments []Fragment
	pos       int
	err       error
}

// NewFragmentStream creates a stream yielding the given fragments in order.
func NewFragmentStream(fragments ...Fragment) *FragmentStream {
	return &FragmentStream{fragments: fragments, pos: -1}
}

// NewFailingStream yields the fragments and then reports err.
func NewFailingStream(err error, fragments ...Fragment) *FragmentStream {
	return &FragmentStream{fragments: fragments, pos: -1, err: err}
}

func (s *FragmentStream) Next() bool {
	if s.pos+1 >= len(s.fragments) {
		return false
	}
	s.pos++
	return true
}

func (s *FragmentStream) Current() Fragment { return s.fragments[s.pos] }

func (s *FragmentStream) Err() error { return s.err }

func (s *FragmentStream) Close() error { return nil }

// ScriptedClient is a Client that replays a fixed sequence of responses,
// one per Complete call. Tests script a whole conversation up front and
// inspect the requests afterwards.
type ScriptedClient struct {
	mu        sync.Mutex
	responses [][]Fragment
	calls     int

	// Requests records every Complete invocation in order.
	Requests []Request
}

// NewScriptedClient creates a client replaying responses in order.
func NewScriptedClient(responses ...[]Fragment) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// Complete returns the next scripted response as a fragment stream.
func (c *ScriptedClient) Complete(_ context.Context, req Request) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if c.calls >= len(c.responses) {
		return nil, errors.New("scripted client: no more responses")
	}
	frags := c.responses[c.calls]
	c.calls++
	return NewFragmentStream(frags...), nil
}

// CallCount returns how many times Complete was invoked.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// TextResponse scripts a response with only plain text, split across the
// given chunks.
func TextResponse(chunks ...string) []Fragment {
	frags := make([]Fragment, 0, len(chunks))
	for _, c := range chunks {
		frags = append(frags, Fragment{Content: c})
	}
	return frags
}

// ToolCallResponse scripts a response carrying complete tool calls in a
// single fragment.
func ToolCallResponse(calls ...ToolCall) []Fragment {
	frag := Fragment{}
	for i, call := range calls {
		frag.ToolCalls = append(frag.ToolCalls, ToolCallDelta{
			Index:     i,
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
		})
	}
	return []Fragment{frag}
}
