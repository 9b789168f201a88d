package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errSourceRequired = errors.New("schema: source is required")
	errEmptyDocument  = errors.New("schema: document is empty")
)

// Document wraps a JSON payload and its origin. Loaders normalise YAML input
// to JSON before building a Document, so Raw is always JSON.
type Document struct {
	source Source
	raw    []byte
}

// NewDocument copies raw and pairs it with src.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errSourceRequired
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, errEmptyDocument
	}
	return Document{source: src, raw: append([]byte(nil), raw...)}, nil
}

// MustNewDocument panics if the document cannot be created. Useful for tests.
func MustNewDocument(src Source, raw []byte) Document {
	doc, err := NewDocument(src, raw)
	if err != nil {
		panic(err)
	}
	return doc
}

// Source returns the origin metadata for the document.
func (d Document) Source() Source {
	return d.source
}

// Raw returns a copy of the JSON payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// Location returns the string identifier of the origin.
func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}

// Value decodes the payload into generic JSON values (map[string]any, []any,
// float64, string, bool, nil).
func (d Document) Value() (any, error) {
	var out any
	if err := json.Unmarshal(d.raw, &out); err != nil {
		return nil, fmt.Errorf("schema: decode %s: %w", d.Location(), err)
	}
	return out, nil
}

// Definition decodes the payload into a FormDefinition. It does not validate
// the result; run the definition validator first for authored input.
func (d Document) Definition() (FormDefinition, error) {
	return DecodeDefinition(d.raw)
}

// Answers decodes the payload into an AnswerMap.
func (d Document) Answers() (AnswerMap, error) {
	var out AnswerMap
	if err := json.Unmarshal(d.raw, &out); err != nil {
		return nil, fmt.Errorf("schema: decode answers %s: %w", d.Location(), err)
	}
	if out == nil {
		out = AnswerMap{}
	}
	return out, nil
}

// DecodeDefinition decodes a JSON form definition.
func DecodeDefinition(raw []byte) (FormDefinition, error) {
	var def FormDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return FormDefinition{}, fmt.Errorf("schema: decode definition: %w", err)
	}
	return def, nil
}

// DefinitionFromValue converts generic JSON values (as produced by
// Document.Value) into a FormDefinition.
func DefinitionFromValue(value any) (FormDefinition, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return FormDefinition{}, fmt.Errorf("schema: encode definition: %w", err)
	}
	return DecodeDefinition(raw)
}
