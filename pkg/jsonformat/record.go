package jsonformat

import (
	"bytes"

	gojson "github.com/goccy/go-json"
)

// Value is one key/value pair of a rendered Record.
type Value struct {
	Key   string
	Value any
}

// Record is the structured output of a Formatter. It keeps property order.
type Record []Value

func (r Record) Get(key string) (any, bool) {
	for _, kv := range r {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

func (r Record) Keys() []string {
	out := make([]string, 0, len(r))
	for _, kv := range r {
		out = append(out, kv.Key)
	}
	return out
}

// Map copies the record into an unordered map.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r))
	for _, kv := range r {
		out[kv.Key] = kv.Value
	}
	return out
}

// marshalJSON encodes like JSON.stringify: <, > and & are written as is.
func marshalJSON(v any) ([]byte, error) {
	return gojson.MarshalWithOption(v, gojson.DisableHTMLEscape())
}

// MarshalJSON writes the properties in order without HTML escaping.
// NaN and infinities are written as null.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(16 * (len(r) + 1))
	buf.WriteByte('{')
	for i, kv := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalJSON(kv.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := marshalJSON(jsonSafe(kv.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
