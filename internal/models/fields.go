package models

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNestedField is returned when a generic field body contains an object or
// a nested array; providers that take form bodies have no encoding for them.
var ErrNestedField = errors.New("nested values are not supported")

// Field is a single name/value pair of a provider request.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered, possibly repeating, set of request fields. Order is
// preserved into the outbound form encoding.
type Fields []Field

// Add appends a field. Blank names and empty values are dropped so optional
// fields are never sent as empty strings.
func (f Fields) Add(name, value string) Fields {
	name = strings.TrimSpace(name)
	if name == "" || value == "" {
		return f
	}
	return append(f, Field{Name: name, Value: value})
}

// Get returns the first value stored under name.
func (f Fields) Get(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Encode renders the fields as application/x-www-form-urlencoded in order.
func (f Fields) Encode() string {
	var b strings.Builder
	for i, field := range f {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(field.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(field.Value))
	}
	return b.String()
}

// FieldsFromJSON reads a flat JSON object into Fields in document order.
// Strings are taken verbatim, other scalars use their JSON text, nulls are
// skipped and arrays of scalars become repeated fields.
func FieldsFromJSON(body []byte) (Fields, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Fields{}, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected a json object", ErrInvalidJSON)
	}

	out := Fields{}
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.IsObject():
			err = fmt.Errorf("field %q: %w", key.String(), ErrNestedField)
		case value.IsArray():
			value.ForEach(func(_, item gjson.Result) bool {
				if item.IsObject() || item.IsArray() {
					err = fmt.Errorf("field %q: %w", key.String(), ErrNestedField)
					return false
				}
				out = out.Add(key.String(), scalarText(item))
				return true
			})
		default:
			out = out.Add(key.String(), scalarText(value))
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FieldsFromForm parses a urlencoded body without going through url.Values so
// the caller's ordering is kept.
func FieldsFromForm(body string) (Fields, error) {
	out := Fields{}
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		rawName, rawValue, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(rawName)
		if err != nil {
			return nil, fmt.Errorf("form field %q: %w", rawName, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("form field %q: %w", name, err)
		}
		out = out.Add(name, value)
	}
	return out, nil
}

func scalarText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.Str
	default:
		return v.Raw
	}
}
