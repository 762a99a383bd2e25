package tool

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Handler is the body of a tool. It receives validated arguments and returns
// a discriminated Result or an error; errors are converted to protocol error
// replies at the execution boundary.
type Handler func(args Arguments) (Result, error)

// Tool is a named, remotely invocable device capability with a typed
// parameter schema. The registry owns tools for the process lifetime.
type Tool struct {
	name        string
	description string
	params      Params
	handler     Handler
	restricted  bool
}

// New creates a tool visible to all callers.
func New(name, description string, params Params, handler Handler) *Tool {
	return &Tool{
		name:        name,
		description: description,
		params:      params,
		handler:     handler,
	}
}

// NewRestricted creates a tool visible to privileged callers only.
// Restricted tools are omitted from tools/list unless explicitly requested.
func NewRestricted(name, description string, params Params, handler Handler) *Tool {
	t := New(name, description, params, handler)
	t.restricted = true

	return t
}

// Name returns the unique tool name.
func (t *Tool) Name() string {
	return t.name
}

// Description returns the human-readable tool description.
func (t *Tool) Description() string {
	return t.description
}

// Params returns the ordered parameter list.
func (t *Tool) Params() Params {
	return t.params
}

// Handler returns the tool body.
func (t *Tool) Handler() Handler {
	return t.handler
}

// Restricted reports whether the tool is gated to privileged callers.
func (t *Tool) Restricted() bool {
	return t.restricted
}

// InputSchema builds the JSON schema advertised for the tool's parameters.
// Parameters without a default are listed as required; integer ranges are
// carried as advisory minimum/maximum metadata.
func (t *Tool) InputSchema() *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(t.params))
	required := make([]string, 0, len(t.params))

	for _, p := range t.params {
		s := &jsonschema.Schema{Type: string(p.Type)}

		if p.Type == TypeInteger {
			if p.Minimum != nil {
				s.Minimum = jsonFloat(*p.Minimum)
			}

			if p.Maximum != nil {
				s.Maximum = jsonFloat(*p.Maximum)
			}
		}

		properties[p.Name] = s

		if p.Default == nil {
			required = append(required, p.Name)
		}
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// MarshalJSON serializes the descriptor in the tools/list wire shape.
func (t *Tool) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string             `json:"name"`
		Description string             `json:"description"`
		InputSchema *jsonschema.Schema `json:"inputSchema"`
	}{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.InputSchema(),
	})
}

func jsonFloat(v int) *float64 {
	f := float64(v)

	return &f
}
