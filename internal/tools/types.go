package tools

import "fmt"

// Status indicates whether a tool invocation succeeded.
type Status string

// Invocation statuses.
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Error codes carried in Result.Error. They form a controlled vocabulary the
// model can react to; invocation failures never surface as Go errors past
// the invoker boundary.
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeValidation   = "VALIDATION"
	ErrCodeSecurity     = "SECURITY"
	ErrCodeIO           = "IO"
	ErrCodeUnknownTool  = "UNKNOWN_TOOL"
	ErrCodeBadArguments = "BAD_ARGUMENTS"
	ErrCodeInternal     = "INTERNAL"
)

// Error describes a failed invocation.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform outcome of a tool invocation. On success Data holds
// the tool-specific payload; on error the Error field is set and Data is nil.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Errorf builds an error result with the given code.
func Errorf(code, format string, args ...any) Result {
	return Result{
		Status: StatusError,
		Error:  &Error{Code: code, Message: fmt.Sprintf(format, args...)},
	}
}

// Success builds a success result.
func Success(message string, data any) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}
