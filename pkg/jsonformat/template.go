package jsonformat

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type typeKind int

const (
	kindString typeKind = iota
	kindAny
	kindNamed
	kindFunc
)

// Type selects how resolved token values are coerced. The zero value is the
// string type.
type Type struct {
	kind typeKind
	name string
	fn   Converter
}

func StringType() Type { return Type{kind: kindString} }

// AnyType passes raw values through ("*").
func AnyType() Type { return Type{kind: kindAny} }

// Named refers to a converter registered by name, such as "integer". The
// name is resolved when the format is compiled.
func Named(name string) Type { return Type{kind: kindNamed, name: name} }

func Convert(fn Converter) Type { return Type{kind: kindFunc, fn: fn} }

// ParseType maps the textual forms "string", "*" and converter names.
func ParseType(s string) Type {
	switch strings.TrimSpace(s) {
	case "", "string":
		return StringType()
	case "*":
		return AnyType()
	default:
		return Named(strings.TrimSpace(s))
	}
}

func (t Type) String() string {
	switch t.kind {
	case kindAny:
		return "*"
	case kindNamed:
		return t.name
	case kindFunc:
		return "func"
	default:
		return "string"
	}
}

func (t *Type) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("type must be a string: %w", err)
	}
	*t = ParseType(s)
	return nil
}

func (t Type) MarshalYAML() (any, error) {
	if t.kind == kindFunc {
		return nil, errors.New("converter functions cannot be marshaled")
	}
	return t.String(), nil
}

// TokenTemplate describes one output property of a mapped format.
type TokenTemplate struct {
	Value string
	Type  Type
	// DefaultValue replaces falsy results. nil means "-".
	DefaultValue any
	NoDefault    bool
	// Required is accepted for compatibility and has no effect.
	Required bool
}

// T is shorthand for a string-typed template.
func T(value string) TokenTemplate { return TokenTemplate{Value: value} }

func (t TokenTemplate) defaultValue() any {
	if t.DefaultValue == nil {
		return "-"
	}
	return t.DefaultValue
}

type rawTokenTemplate struct {
	Value             *string `yaml:"value"`
	Type              Type    `yaml:"type"`
	DefaultValue      any     `yaml:"defaultValue"`
	DefaultValueSnake any     `yaml:"default_value"`
	NoDefault         bool    `yaml:"noDefault"`
	NoDefaultSnake    bool    `yaml:"no_default"`
	Required          bool    `yaml:"required"`
}

// UnmarshalYAML accepts either a scalar template or a mapping with value,
// type, defaultValue (default_value), noDefault (no_default) and required.
func (t *TokenTemplate) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*t = TokenTemplate{Value: s}
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: token template must be a string or a mapping", value.Line)
	}
	var raw rawTokenTemplate
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Value == nil {
		return fmt.Errorf("line %d: token template is missing \"value\"", value.Line)
	}
	t.Value = *raw.Value
	t.Type = raw.Type
	t.DefaultValue = raw.DefaultValue
	if t.DefaultValue == nil {
		t.DefaultValue = raw.DefaultValueSnake
	}
	t.NoDefault = raw.NoDefault || raw.NoDefaultSnake
	t.Required = raw.Required
	return nil
}

// Field is one property of a MappedFormat.
type Field struct {
	Key      string
	Template TokenTemplate
}

// MappedFormat is an ordered mapping of output key to template. Order is
// kept when the formatter serializes.
type MappedFormat []Field

// Set replaces the template of an existing key or appends a new one.
func (m MappedFormat) Set(key string, t TokenTemplate) MappedFormat {
	for i := range m {
		if m[i].Key == key {
			m[i].Template = t
			return m
		}
	}
	return append(m, Field{Key: key, Template: t})
}

func (m MappedFormat) Get(key string) (TokenTemplate, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Template, true
		}
	}
	return TokenTemplate{}, false
}

func (m MappedFormat) Keys() []string {
	out := make([]string, 0, len(m))
	for _, f := range m {
		out = append(out, f.Key)
	}
	return out
}

// UnmarshalYAML keeps the document order of the mapping keys.
func (m *MappedFormat) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: format fields must be a mapping", value.Line)
	}
	out := make(MappedFormat, 0, len(value.Content)/2)
	seen := make(map[string]struct{}, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if _, dup := seen[key]; dup {
			return fmt.Errorf("line %d: duplicate format field %q", value.Content[i].Line, key)
		}
		seen[key] = struct{}{}
		var tt TokenTemplate
		if err := value.Content[i+1].Decode(&tt); err != nil {
			return fmt.Errorf("format field %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Template: tt})
	}
	*m = out
	return nil
}

func (m MappedFormat) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range m {
		k := &yaml.Node{Kind: yaml.ScalarNode, Value: f.Key}
		v := &yaml.Node{}
		t := f.Template
		if t.Type.kind == kindString && t.DefaultValue == nil && !t.NoDefault && !t.Required {
			if err := v.Encode(t.Value); err != nil {
				return nil, err
			}
		} else {
			raw := map[string]any{"value": t.Value}
			typ, err := t.Type.MarshalYAML()
			if err != nil {
				return nil, fmt.Errorf("format field %q: %w", f.Key, err)
			}
			raw["type"] = typ
			if t.DefaultValue != nil {
				raw["defaultValue"] = t.DefaultValue
			}
			if t.NoDefault {
				raw["noDefault"] = true
			}
			if t.Required {
				raw["required"] = true
			}
			if err := v.Encode(raw); err != nil {
				return nil, err
			}
		}
		node.Content = append(node.Content, k, v)
	}
	return node, nil
}
