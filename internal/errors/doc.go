// Package errors defines error types for the chime control core.
//
// It provides sentinel errors for commonly checked conditions plus structured
// error types for protocol-level failures. All error types support error
// unwrapping and can be checked using errors.Is and errors.As.
package errors
