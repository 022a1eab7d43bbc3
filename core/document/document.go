// Package document provides the standard evaluation context for the rules
// engine: an immutable JSON document addressed with gjson paths.
package document

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when a document is built from malformed JSON.
var ErrInvalidJSON = errors.New("invalid JSON document")

// Document is a JSON value that rules are evaluated against. Fields are
// addressed with gjson path syntax, e.g. `user.roles.#` or `tags.0`.
type Document struct {
	raw []byte
}

// FromJSON builds a Document from raw JSON. The bytes are copied.
func FromJSON(raw []byte) (*Document, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &Document{raw: cp}, nil
}

// MustFromJSON is like FromJSON but panics on invalid input.
func MustFromJSON(raw string) *Document {
	doc, err := FromJSON([]byte(raw))
	if err != nil {
		panic(fmt.Sprintf("document: %v", err))
	}
	return doc
}

// FromValue marshals v to JSON and wraps the result.
func FromValue(v any) (*Document, error) {
	if v == nil {
		return nil, fmt.Errorf("document value cannot be nil")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document value: %w", err)
	}
	return &Document{raw: raw}, nil
}

// FromMap wraps a decoded JSON object.
func FromMap(m map[string]any) (*Document, error) {
	if m == nil {
		return nil, fmt.Errorf("document map cannot be nil")
	}
	return FromValue(m)
}

// Get returns the value at path. A nil document has no values.
func (d *Document) Get(path string) gjson.Result {
	if d == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(d.raw, path)
}

// Exists reports whether path resolves to a non-null value.
func (d *Document) Exists(path string) bool {
	r := d.Get(path)
	return r.Exists() && r.Type != gjson.Null
}

// Raw returns the document's JSON. Callers must not modify it.
func (d *Document) Raw() []byte {
	if d == nil {
		return nil
	}
	return d.raw
}

// Map decodes the document into a generic map. Non-object documents are
// exposed under the key "value".
func (d *Document) Map() map[string]any {
	if d == nil {
		return map[string]any{}
	}
	if m, ok := gjson.ParseBytes(d.raw).Value().(map[string]any); ok {
		return m
	}
	return map[string]any{"value": gjson.ParseBytes(d.raw).Value()}
}

func (d *Document) String() string {
	if d == nil {
		return "null"
	}
	return string(d.raw)
}
