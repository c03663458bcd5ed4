package models

import (
	"bytes"
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by ParseValue when the payload is not JSON.
var ErrInvalidJSON = errors.New("payload is not valid json")

// Value is a provider response body kept as raw JSON. It is validated once on
// parse and then forwarded byte for byte, so key order and number formatting
// survive the round trip to the caller.
type Value []byte

// ParseValue validates raw as a JSON document. Surrounding whitespace is
// dropped; an empty payload yields a nil Value and no error.
func ParseValue(raw []byte) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, ErrInvalidJSON
	}
	out := make(Value, len(trimmed))
	copy(out, trimmed)
	return out, nil
}

// IsEmpty reports whether the provider returned no body.
func (v Value) IsEmpty() bool { return len(v) == 0 }

// Get queries the value with a gjson path such as "messages.#.sid".
func (v Value) Get(path string) gjson.Result {
	return gjson.GetBytes(v, path)
}

// String returns the raw JSON text.
func (v Value) String() string { return string(v) }

// MarshalJSON emits the stored document unchanged.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

// UnmarshalJSON keeps the raw document. A JSON null leaves the Value empty.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*v = nil
		return nil
	}
	*v = append((*v)[:0], trimmed...)
	return nil
}
