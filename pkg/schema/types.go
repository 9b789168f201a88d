package schema

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FieldType is the closed set of input kinds a form field can declare.
type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeTextarea     FieldType = "textarea"
	FieldTypeNumber       FieldType = "number"
	FieldTypeDate         FieldType = "date"
	FieldTypeSingleSelect FieldType = "singleSelect"
	FieldTypeMultiselect  FieldType = "multiselect"
	FieldTypeFile         FieldType = "file"
	FieldTypeSignature    FieldType = "signature"
)

// FieldTypes lists every supported field type in canonical order.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldTypeText,
		FieldTypeTextarea,
		FieldTypeNumber,
		FieldTypeDate,
		FieldTypeSingleSelect,
		FieldTypeMultiselect,
		FieldTypeFile,
		FieldTypeSignature,
	}
}

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	for _, candidate := range FieldTypes() {
		if t == candidate {
			return true
		}
	}
	return false
}

// HasOptions reports whether the field type draws its value from Options.
func (t FieldType) HasOptions() bool {
	return t == FieldTypeSingleSelect || t == FieldTypeMultiselect
}

// RuleKind is the closed set of validation rule kinds.
type RuleKind string

const (
	RuleRequired   RuleKind = "required"
	RuleRequiredIf RuleKind = "requiredIf"
	RuleMin        RuleKind = "min"
	RuleMax        RuleKind = "max"
	RuleRegex      RuleKind = "regex"
	RuleCrossField RuleKind = "cross_field"
)

// RuleKinds lists every supported rule kind in canonical order.
func RuleKinds() []RuleKind {
	return []RuleKind{
		RuleRequired,
		RuleRequiredIf,
		RuleMin,
		RuleMax,
		RuleRegex,
		RuleCrossField,
	}
}

// Valid reports whether k is one of the supported rule kinds.
func (k RuleKind) Valid() bool {
	for _, candidate := range RuleKinds() {
		if k == candidate {
			return true
		}
	}
	return false
}

// Conditional reports whether the rule kind consults its Condition expression.
func (k RuleKind) Conditional() bool {
	return k == RuleRequiredIf || k == RuleCrossField
}

// FormDefinition is the authored structure of a form: an ordered list of
// sections. It is read-only while the engine evaluates it.
type FormDefinition struct {
	Sections []Section `json:"sections" yaml:"sections"`
}

// Section groups fields and nested groups under a title.
type Section struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title" yaml:"title"`
	Fields []Field `json:"fields" yaml:"fields"`
	Groups []Group `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Group clusters related fields inside a section. Repeatable only affects
// presentation; the engine treats each field id once.
type Group struct {
	ID         string  `json:"id" yaml:"id"`
	Title      string  `json:"title,omitempty" yaml:"title,omitempty"`
	Repeatable bool    `json:"repeatable,omitempty" yaml:"repeatable,omitempty"`
	Fields     []Field `json:"fields" yaml:"fields"`
}

// Field is a single question. Its ID is unique across the whole form.
type Field struct {
	ID         string           `json:"id" yaml:"id"`
	Type       FieldType        `json:"type" yaml:"type"`
	Label      string           `json:"label" yaml:"label"`
	HelpText   string           `json:"helpText,omitempty" yaml:"helpText,omitempty"`
	Options    []string         `json:"options,omitempty" yaml:"options,omitempty"`
	Branching  *Branching       `json:"branching,omitempty" yaml:"branching,omitempty"`
	Validation []ValidationRule `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// ShowIf returns the field's showIf expression or an empty string.
func (f Field) ShowIf() string {
	if f.Branching == nil {
		return ""
	}
	return strings.TrimSpace(f.Branching.ShowIf)
}

// HideIf returns the field's hideIf expression or an empty string.
func (f Field) HideIf() string {
	if f.Branching == nil {
		return ""
	}
	return strings.TrimSpace(f.Branching.HideIf)
}

// HasOption reports whether value is one of the field's declared options.
func (f Field) HasOption(value string) bool {
	for _, option := range f.Options {
		if option == value {
			return true
		}
	}
	return false
}

// Branching holds the conditional visibility expressions of a field.
type Branching struct {
	ShowIf string `json:"showIf,omitempty" yaml:"showIf,omitempty"`
	HideIf string `json:"hideIf,omitempty" yaml:"hideIf,omitempty"`
}

// ValidationRule is a single authored constraint. Value carries the numeric
// bound, date bound or regex pattern depending on Rule.
type ValidationRule struct {
	Rule      RuleKind  `json:"rule" yaml:"rule"`
	Value     RuleValue `json:"value,omitempty" yaml:"value,omitempty"`
	Condition string    `json:"condition,omitempty" yaml:"condition,omitempty"`
	Message   string    `json:"message" yaml:"message"`
}

// RuleValue keeps a rule argument in its textual form. Authors may write the
// bound as a JSON number or a string; both decode to the same representation.
type RuleValue string

// String returns the textual value.
func (v RuleValue) String() string {
	return string(v)
}

// Empty reports whether the value is unset or blank.
func (v RuleValue) Empty() bool {
	return strings.TrimSpace(string(v)) == ""
}

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (v *RuleValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = RuleValue(s)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err == nil {
		*v = RuleValue(number.String())
		return nil
	}
	var flag bool
	if err := json.Unmarshal(trimmed, &flag); err != nil {
		return err
	}
	*v = RuleValue(strconv.FormatBool(flag))
	return nil
}

// MarshalJSON emits numeric values as JSON numbers and everything else as
// strings.
func (v RuleValue) MarshalJSON() ([]byte, error) {
	raw := strings.TrimSpace(string(v))
	if raw != "" {
		if _, err := strconv.ParseFloat(raw, 64); err == nil && json.Valid([]byte(raw)) {
			return []byte(raw), nil
		}
	}
	return json.Marshal(string(v))
}

// AnswerMap holds submitted values keyed by field id. Values are whatever a
// JSON decoder produces: strings, float64, bools, []any or nil.
type AnswerMap map[string]any

// Lookup returns the value stored for id and whether the key exists.
func (a AnswerMap) Lookup(id string) (any, bool) {
	if a == nil {
		return nil, false
	}
	value, ok := a[id]
	return value, ok
}
