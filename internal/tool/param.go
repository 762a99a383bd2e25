package tool

import (
	"fmt"

	"chime/internal/errors"
)

// ParamType identifies the primitive type of a tool parameter.
type ParamType string

const (
	// TypeBoolean accepts JSON true/false.
	TypeBoolean ParamType = "boolean"
	// TypeInteger accepts JSON numbers, truncated to int.
	TypeInteger ParamType = "integer"
	// TypeString accepts JSON strings.
	TypeString ParamType = "string"
)

// Param describes one named, typed tool parameter.
//
// A nil Default marks the parameter as mandatory in every call. Minimum and
// Maximum are advisory schema metadata for integer parameters; range
// enforcement is the tool body's responsibility.
type Param struct {
	Name    string
	Type    ParamType
	Default any
	Minimum *int
	Maximum *int
}

// Bool declares a mandatory boolean parameter.
func Bool(name string) Param {
	return Param{Name: name, Type: TypeBoolean}
}

// BoolDefault declares an optional boolean parameter.
func BoolDefault(name string, def bool) Param {
	return Param{Name: name, Type: TypeBoolean, Default: def}
}

// Int declares a mandatory integer parameter.
func Int(name string) Param {
	return Param{Name: name, Type: TypeInteger}
}

// IntRange declares a mandatory integer parameter with an advisory range.
func IntRange(name string, minimum, maximum int) Param {
	return Param{Name: name, Type: TypeInteger, Minimum: &minimum, Maximum: &maximum}
}

// IntDefault declares an optional integer parameter.
func IntDefault(name string, def int) Param {
	return Param{Name: name, Type: TypeInteger, Default: def}
}

// IntDefaultRange declares an optional integer parameter with an advisory range.
func IntDefaultRange(name string, def, minimum, maximum int) Param {
	return Param{Name: name, Type: TypeInteger, Default: def, Minimum: &minimum, Maximum: &maximum}
}

// String declares a mandatory string parameter.
func String(name string) Param {
	return Param{Name: name, Type: TypeString}
}

// StringDefault declares an optional string parameter.
func StringDefault(name, def string) Param {
	return Param{Name: name, Type: TypeString, Default: def}
}

// Params is the ordered parameter list of a tool.
type Params []Param

// Marshal extracts a typed value for every declared parameter from the raw
// call arguments. A type mismatch or absence is not immediately fatal: only
// a parameter lacking both a default and a successfully extracted value
// fails the call.
func (ps Params) Marshal(raw map[string]any) (Arguments, error) {
	args := make(Arguments, len(ps))

	for _, p := range ps {
		v, ok := p.extract(raw)
		if !ok {
			if p.Default == nil {
				return nil, fmt.Errorf("%w: %s", errors.ErrMissingArgument, p.Name)
			}

			v = p.Default
		}

		args[p.Name] = v
	}

	return args, nil
}

// extract pulls a same-typed value out of the raw arguments.
func (p Param) extract(raw map[string]any) (any, bool) {
	v, present := raw[p.Name]
	if !present {
		return nil, false
	}

	switch p.Type {
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, true
		}

	case TypeInteger:
		// JSON numbers decode as float64.
		if f, ok := v.(float64); ok {
			return int(f), true
		}

	case TypeString:
		if s, ok := v.(string); ok {
			return s, true
		}
	}

	return nil, false
}

// Arguments holds the validated parameter values handed to a tool handler.
type Arguments map[string]any

// Bool returns the named boolean argument.
func (a Arguments) Bool(name string) bool {
	v, _ := a[name].(bool)

	return v
}

// Int returns the named integer argument.
func (a Arguments) Int(name string) int {
	v, _ := a[name].(int)

	return v
}

// String returns the named string argument.
func (a Arguments) String(name string) string {
	v, _ := a[name].(string)

	return v
}
