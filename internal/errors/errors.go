package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrMissingArgument indicates a tool call omitted a mandatory parameter.
	// Wrap it with the parameter name: fmt.Errorf("%w: %s", ErrMissingArgument, name).
	ErrMissingArgument = errors.New("missing valid argument")

	// ErrUnknownTool indicates a tools/call named a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMethodNotImplemented indicates a request method the dispatcher does not handle.
	ErrMethodNotImplemented = errors.New("method not implemented")
)

// PayloadLimitError indicates a tools/list page could not fit even a single
// descriptor within the response size budget.
type PayloadLimitError struct {
	Tool string
}

func (e *PayloadLimitError) Error() string {
	return fmt.Sprintf("failed to add tool %s because of payload size limit", e.Tool)
}

// ToolExecutionError wraps a fault raised by a tool body. The dispatcher
// converts it to a protocol error reply; it never propagates further.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}
