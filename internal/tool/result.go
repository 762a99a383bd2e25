package tool

import (
	"encoding/json"
	"strconv"
)

// Result is the discriminated outcome of a successful tool invocation:
// a boolean, an integer, a string, or a structured JSON value. It replaces
// throw-based signaling at the execution boundary; failures travel through
// the handler's error return instead.
type Result struct {
	value any
}

// BoolResult wraps a boolean outcome.
func BoolResult(v bool) Result {
	return Result{value: v}
}

// IntResult wraps an integer outcome.
func IntResult(v int) Result {
	return Result{value: v}
}

// TextResult wraps a plain-text outcome.
func TextResult(text string) Result {
	return Result{value: text}
}

// JSONResult wraps an already-serialized structured outcome.
func JSONResult(raw json.RawMessage) Result {
	return Result{value: raw}
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MarshalCall serializes the result as a tools/call payload carrying a
// single text content block.
func (r Result) MarshalCall() (json.RawMessage, error) {
	payload := struct {
		Content []contentBlock `json:"content"`
		IsError bool           `json:"isError"`
	}{
		Content: []contentBlock{{Type: "text", Text: r.text()}},
	}

	return json.Marshal(payload)
}

func (r Result) text() string {
	switch v := r.value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	case json.RawMessage:
		return string(v)
	default:
		return ""
	}
}
