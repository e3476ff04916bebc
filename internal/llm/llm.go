// Package llm defines the model-facing contract used by the orchestrator.
//
// The completion API is an external collaborator: Client accepts a message
// history plus a tool catalog and returns a finite stream of response
// fragments. A non-streaming backend degrades to a stream of exactly one
// fragment; reconstruction is identical either way (see accumulate.go).
package llm

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Role identifies the author of a conversation message.
type Role string

// Conversation roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-issued request to invoke a named tool.
// Arguments is the serialized JSON argument object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry of the conversation history.
//
// Assistant messages may carry pending tool calls; tool messages carry the
// result of exactly one call, correlated by ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // assistant only
	ToolCallID string     // tool only
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message carrying calls.
func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage builds a tool-result message correlated to callID.
func ToolMessage(content, callID string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ToolDecl declares one tool's contract to the model.
type ToolDecl struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Request is one completion invocation.
type Request struct {
	Messages []Message
	Tools    []ToolDecl
}

// ToolCallDelta is one partial tool-call update within a fragment.
//
// Index is the accumulation key assigned by the model: deltas with the same
// index merge into one call. Any field may be empty in a given delta, in
// which case the accumulated field is unchanged.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Fragment is one incremental unit of a model response.
type Fragment struct {
	Content   string
	ToolCalls []ToolCallDelta
}

// Stream is a lazy, finite sequence of fragments. The iteration protocol
// follows the SSE stream shape of the openai client: Next advances and
// reports whether a fragment is available, Current returns it, and Err
// reports a transport failure after Next returns false.
type Stream interface {
	Next() bool
	Current() Fragment
	Err() error
	Close() error
}

// Client is the black-box completion API.
type Client interface {
	Complete(ctx context.Context, req Request) (Stream, error)
}
