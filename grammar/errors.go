// Package grammar builds structured-output grammars for Subconscious runs:
// recursive task/reasoning tree types with a bounded depth, tool-invocation
// unions, strict JSON-Schema rendering, and patching of rendered schema
// documents.
package grammar

import "fmt"

// Error codes returned by grammar construction and rendering.
//
//   - "invalid_depth": a task grammar was requested with depth < 1
//   - "invalid_reasoning_type": a thread grammar's reasoning type is not a
//     list of task records or a union of such lists
//   - "unsupported_type": a response-format target is neither a *Record nor
//     a struct
//   - "malformed_reference": a $ref is not a local "#/..." pointer
//   - "unresolved_reference": a $ref pointer path is missing from the document
//   - "invalid_schema": a schema node that must be an object is not one
const (
	CodeInvalidDepth         = "invalid_depth"
	CodeInvalidReasoningType = "invalid_reasoning_type"
	CodeUnsupportedType      = "unsupported_type"
	CodeMalformedReference   = "malformed_reference"
	CodeUnresolvedReference  = "unresolved_reference"
	CodeInvalidSchema        = "invalid_schema"
)

// Error is the structured error type for grammar failures. It carries a
// machine-readable code alongside the human-readable message so callers can
// branch on the failure kind.
type Error struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// Error implements the standard error interface.
func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new grammar Error with the given code and message.
func NewError(code, message string) error {
	return Error{
		Code:    code,
		Message: message,
	}
}
