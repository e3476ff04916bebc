// Package aimsg defines the structured answer format the model must emit at
// the end of a turn.
//
// Every message is a tagged union serialized as {"type": ..., "data": ...}
// with exactly one tag and a payload shape fixed by that tag:
//
//   - files_sorting: data is a list of {ori_name, new_name} rename pairs
//   - call_tools: data is {action: string}
//   - prompt | confirm | error | success: data is a plain string
//
// Parse is strict: unknown tags, mismatched payload shapes, and trailing
// content are all rejected. The orchestrator does not guess a fallback
// interpretation for malformed model output.
package aimsg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type tags a message with its payload shape.
type Type string

// Message type tags. No other tags are permitted.
const (
	TypePrompt       Type = "prompt"
	TypeConfirm      Type = "confirm"
	TypeError        Type = "error"
	TypeSuccess      Type = "success"
	TypeFilesSorting Type = "files_sorting"
	TypeCallTools    Type = "call_tools"
)

// ErrInvalid reports a payload that is not a well-formed message.
var ErrInvalid = errors.New("invalid ai message")

// Rename is one entry of a files_sorting message. Both names are relative
// names within the directory being organized, not full paths.
type Rename struct {
	OriName string `json:"ori_name"`
	NewName string `json:"new_name"`
}

// Message is the tagged union. Exactly one payload field is meaningful,
// selected by Type.
type Message struct {
	Type Type

	// Text carries the payload for prompt, confirm, error and success.
	Text string

	// Sorting carries the payload for files_sorting.
	Sorting []Rename

	// Action carries the payload for call_tools.
	Action string
}

// envelope is the wire shape.
type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// callToolsData is the call_tools payload wire shape.
type callToolsData struct {
	Action string `json:"action"`
}

// Parse decodes s strictly as a single Message. The input may be surrounded
// by whitespace but must contain exactly one JSON object and nothing else.
func Parse(s string) (Message, error) {
	dec := json.NewDecoder(strings.NewReader(s))

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if dec.More() {
		return Message{}, fmt.Errorf("%w: trailing content after message", ErrInvalid)
	}
	if len(env.Data) == 0 {
		return Message{}, fmt.Errorf("%w: missing data field", ErrInvalid)
	}

	msg := Message{Type: env.Type}
	switch env.Type {
	case TypePrompt, TypeConfirm, TypeError, TypeSuccess:
		if err := json.Unmarshal(env.Data, &msg.Text); err != nil {
			return Message{}, fmt.Errorf("%w: %s data must be a string: %v", ErrInvalid, env.Type, err)
		}
	case TypeFilesSorting:
		if err := strictUnmarshal(env.Data, &msg.Sorting); err != nil {
			return Message{}, fmt.Errorf("%w: files_sorting data: %v", ErrInvalid, err)
		}
	case TypeCallTools:
		var data callToolsData
		if err := strictUnmarshal(env.Data, &data); err != nil {
			return Message{}, fmt.Errorf("%w: call_tools data: %v", ErrInvalid, err)
		}
		msg.Action = data.Action
	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrInvalid, env.Type)
	}
	return msg, nil
}

// strictUnmarshal rejects payload fields outside the declared shape.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing content")
	}
	return nil
}

// MarshalJSON emits the {type, data} wire shape.
func (m Message) MarshalJSON() ([]byte, error) {
	var data any
	switch m.Type {
	case TypePrompt, TypeConfirm, TypeError, TypeSuccess:
		data = m.Text
	case TypeFilesSorting:
		sorting := m.Sorting
		if sorting == nil {
			sorting = []Rename{}
		}
		data = sorting
	case TypeCallTools:
		data = callToolsData{Action: m.Action}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalid, m.Type)
	}
	return json.Marshal(envelope2{Type: m.Type, Data: data})
}

// UnmarshalJSON decodes the {type, data} wire shape with the same strictness
// as Parse.
func (m *Message) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// envelope2 is the encoding counterpart of envelope; Data is any so payloads
// marshal directly instead of double-encoding through RawMessage.
type envelope2 struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Errorf builds an error-tagged message.
func Errorf(format string, args ...any) Message {
	return Message{Type: TypeError, Text: fmt.Sprintf(format, args...)}
}

// CallTools builds a call_tools progress message.
func CallTools(action string) Message {
	return Message{Type: TypeCallTools, Action: action}
}
