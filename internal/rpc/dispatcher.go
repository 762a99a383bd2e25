package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"chime/internal/errors"
	"chime/internal/tool"
)

const (
	// protocolVersion is the only accepted value of the jsonrpc field.
	protocolVersion = "2.0"

	// mcpProtocolVersion is reported in the initialize reply.
	mcpProtocolVersion = "2024-11-05"

	// notificationPrefix marks methods acknowledged by silent drop.
	notificationPrefix = "notifications"

	// maxPayloadSize is the hard ceiling for a serialized tools/list result.
	maxPayloadSize = 8000

	// payloadSlack reserves room for the closing brackets and an optional
	// nextCursor when accumulating a tools/list page.
	payloadSlack = 30
)

// Sender delivers a fully serialized reply envelope to the transport.
type Sender interface {
	Send(payload []byte) error
}

// Scheduler submits work to the serialized-execution context shared by the
// whole device. Tool bodies run there, one at a time, never on the
// goroutine that parses the request.
type Scheduler interface {
	Schedule(fn func())
}

// Camera receives vision capability negotiation from initialize.
type Camera interface {
	SetExplainURL(url, token string)
}

// ServerInfo is the build identity reported by initialize.
type ServerInfo struct {
	Name    string
	Version string
}

// Dispatcher parses inbound request envelopes and routes them to the
// registry. It is stateless per request and safe for concurrent use.
type Dispatcher struct {
	log      *slog.Logger
	registry *tool.Registry
	sender   Sender
	exec     Scheduler
	info     ServerInfo
	camera   Camera
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCamera attaches the camera collaborator that receives vision
// capability negotiation.
func WithCamera(c Camera) Option {
	return func(d *Dispatcher) {
		d.camera = c
	}
}

// NewDispatcher creates a dispatcher bound to a registry, an outbound
// sender and the serialized-execution context.
func NewDispatcher(
	log *slog.Logger,
	registry *tool.Registry,
	sender Sender,
	exec Scheduler,
	info ServerInfo,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		log:      log.With("component", "rpc"),
		registry: registry,
		sender:   sender,
		exec:     exec,
		info:     info,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// HandleMessage processes one raw request envelope.
//
// Malformed envelopes fail silently with a logged error: without a valid
// numeric id the protocol cannot report errors. Notification-shaped methods
// are acknowledged by silent drop. Every well-formed request produces
// exactly one reply, though tools/call replies are emitted asynchronously
// after the tool body runs on the execution context.
func (d *Dispatcher) HandleMessage(raw []byte) {
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.log.Error("failed to parse message", "error", err)

		return
	}

	version, _ := msg["jsonrpc"].(string)
	if version != protocolVersion {
		d.log.Error("invalid jsonrpc version", "version", version)

		return
	}

	method, ok := msg["method"].(string)
	if !ok {
		d.log.Error("missing method")

		return
	}

	if strings.HasPrefix(method, notificationPrefix) {
		return
	}

	var params map[string]any
	if raw, present := msg["params"]; present {
		params, ok = raw.(map[string]any)
		if !ok {
			d.log.Error("invalid params", "method", method)

			return
		}
	}

	idValue, ok := msg["id"].(float64)
	if !ok {
		d.log.Error("invalid id", "method", method)

		return
	}

	id := int64(idValue)

	switch method {
	case "initialize":
		d.handleInitialize(id, params)
	case "tools/list":
		d.handleToolsList(id, params)
	case "tools/call":
		d.handleToolCall(id, params)
	default:
		d.log.Error("method not implemented", "method", method)
		d.replyError(id, fmt.Sprintf("%v: %s", errors.ErrMethodNotImplemented, method))
	}
}

// handleInitialize performs capability negotiation and replies with the
// fixed success envelope carrying the server identity.
func (d *Dispatcher) handleInitialize(id int64, params map[string]any) {
	if capabilities, ok := params["capabilities"].(map[string]any); ok {
		d.applyCapabilities(capabilities)
	}

	result, err := json.Marshal(struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    map[string]any `json:"capabilities"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}{
		ProtocolVersion: mcpProtocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo: struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		}{Name: d.info.Name, Version: d.info.Version},
	})
	if err != nil {
		d.log.Error("failed to marshal initialize result", "error", err)

		return
	}

	d.replyResult(id, result)
}

// applyCapabilities forwards the vision sub-object to the camera
// collaborator, when both are present.
func (d *Dispatcher) applyCapabilities(capabilities map[string]any) {
	vision, ok := capabilities["vision"].(map[string]any)
	if !ok || d.camera == nil {
		return
	}

	url, ok := vision["url"].(string)
	if !ok {
		return
	}

	token, _ := vision["token"].(string)
	d.camera.SetExplainURL(url, token)
}

// handleToolsList builds one page of tool descriptors within the payload
// size budget, emitting a nextCursor when descriptors remain.
func (d *Dispatcher) handleToolsList(id int64, params map[string]any) {
	cursor, _ := params["cursor"].(string)
	withUserTools, _ := params["withUserTools"].(bool)

	page := []byte(`{"tools":[`)

	var (
		added      int
		nextCursor string
	)

	for t := range d.registry.List(cursor, withUserTools) {
		descriptor, err := json.Marshal(t)
		if err != nil {
			d.log.Error("failed to marshal tool descriptor", "tool", t.Name(), "error", err)

			continue
		}

		if len(page)+len(descriptor)+payloadSlack > maxPayloadSize {
			nextCursor = t.Name()

			break
		}

		if added > 0 {
			page = append(page, ',')
		}

		page = append(page, descriptor...)
		added++
	}

	if added == 0 && nextCursor != "" {
		// Not even the first candidate descriptor fits. A truncated
		// descriptor would be worse than an explicit failure.
		err := &errors.PayloadLimitError{Tool: nextCursor}
		d.log.Error("tools/list page over budget", "tool", nextCursor)
		d.replyError(id, err.Error())

		return
	}

	page = append(page, ']')

	if nextCursor != "" {
		page = append(page, []byte(`,"nextCursor":`)...)

		encoded, err := json.Marshal(nextCursor)
		if err != nil {
			d.log.Error("failed to marshal cursor", "error", err)

			return
		}

		page = append(page, encoded...)
	}

	page = append(page, '}')

	d.replyResult(id, page)
}

// handleToolCall resolves the tool, marshals its arguments, and hands
// execution to the serialized-execution context. The reply is emitted after
// the tool body completes; the caller sees exactly one reply per id.
func (d *Dispatcher) handleToolCall(id int64, params map[string]any) {
	if params == nil {
		d.log.Error("tools/call missing params")
		d.replyError(id, "missing params")

		return
	}

	name, ok := params["name"].(string)
	if !ok {
		d.log.Error("tools/call missing name")
		d.replyError(id, "missing name")

		return
	}

	var rawArgs map[string]any
	if raw, present := params["arguments"]; present {
		rawArgs, ok = raw.(map[string]any)
		if !ok {
			d.log.Error("tools/call invalid arguments", "tool", name)
			d.replyError(id, "invalid arguments")

			return
		}
	}

	t, found := d.registry.Lookup(name)
	if !found {
		d.log.Error("tools/call unknown tool", "tool", name)
		d.replyError(id, fmt.Sprintf("%v: %s", errors.ErrUnknownTool, name))

		return
	}

	args, err := t.Params().Marshal(rawArgs)
	if err != nil {
		d.log.Error("tools/call argument marshaling failed", "tool", name, "error", err)
		d.replyError(id, err.Error())

		return
	}

	d.exec.Schedule(func() {
		d.runTool(id, t, args)
	})
}

// runTool executes a tool body on the execution context and converts its
// outcome, including panics, into exactly one protocol reply.
func (d *Dispatcher) runTool(id int64, t *tool.Tool, args tool.Arguments) {
	defer func() {
		if r := recover(); r != nil {
			err := &errors.ToolExecutionError{Tool: t.Name(), Err: fmt.Errorf("%v", r)}
			d.log.Error("tool panicked", "tool", t.Name(), "panic", r)
			d.replyError(id, err.Error())
		}
	}()

	result, err := t.Handler()(args)
	if err != nil {
		d.log.Error("tool failed", "tool", t.Name(), "error", err)
		d.replyError(id, err.Error())

		return
	}

	payload, err := result.MarshalCall()
	if err != nil {
		d.log.Error("failed to marshal tool result", "tool", t.Name(), "error", err)
		d.replyError(id, "failed to serialize result")

		return
	}

	d.replyResult(id, payload)
}

// replyResult emits a success envelope. It never returns an error; send
// failures are logged and dropped.
func (d *Dispatcher) replyResult(id int64, result json.RawMessage) {
	payload, err := json.Marshal(struct {
		Jsonrpc string          `json:"jsonrpc"`
		ID      int64           `json:"id"`
		Result  json.RawMessage `json:"result"`
	}{
		Jsonrpc: protocolVersion,
		ID:      id,
		Result:  result,
	})
	if err != nil {
		d.log.Error("failed to marshal reply", "id", id, "error", err)

		return
	}

	if err := d.sender.Send(payload); err != nil {
		d.log.Error("failed to send reply", "id", id, "error", err)
	}
}

// replyError emits an error envelope. It never returns an error.
func (d *Dispatcher) replyError(id int64, message string) {
	payload, err := json.Marshal(struct {
		Jsonrpc string `json:"jsonrpc"`
		ID      int64  `json:"id"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}{
		Jsonrpc: protocolVersion,
		ID:      id,
		Error: struct {
			Message string `json:"message"`
		}{Message: message},
	})
	if err != nil {
		d.log.Error("failed to marshal error reply", "id", id, "error", err)

		return
	}

	if err := d.sender.Send(payload); err != nil {
		d.log.Error("failed to send error reply", "id", id, "error", err)
	}
}
