package agent

import (
	"fmt"
)

// NotFoundError reports an unknown persona identifier.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("persona %q not found", e.ID)
}

// ToolError is a single tool failure. It never aborts a turn; its diagnostic
// text takes the tool's place in the prompt.
type ToolError struct {
	Kind ToolKind
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s tool: %v", e.Kind, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Diagnostic is the text shown to the model in place of a result.
func (e *ToolError) Diagnostic() string {
	return "Error " + e.Err.Error()
}

// CompletionError is a failure of the completion provider. It ends the turn.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return "completion failed: " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error { return e.Err }
