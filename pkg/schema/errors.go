package schema

import (
	"fmt"
	"sort"
	"strconv"
)

// Code is the machine-readable category attached to a ValidationError.
type Code string

// Rule violation codes. They match the rule kind that produced them.
const (
	CodeRequired   Code = "required"
	CodeRequiredIf Code = "requiredIf"
	CodeMin        Code = "min"
	CodeMax        Code = "max"
	CodeRegex      Code = "regex"
	CodeCrossField Code = "cross_field"
)

// Value and submission codes.
const (
	CodeInvalidOption Code = "invalid_option"
	CodeInvalidType   Code = "invalid_type"
	CodeInvalidField  Code = "invalid_field"
)

// Definition codes.
const (
	CodeDuplicateFieldID      Code = "duplicate_field_id"
	CodeMissingOptions        Code = "missing_options"
	CodeInvalidFieldReference Code = "invalid_field_reference"
	CodeIncompatibleRule      Code = "incompatible_rule"
	CodeCircularDependency    Code = "circular_dependency"
	CodeDependencyDepth       Code = "dependency_depth"
	CodeInvalidExpression     Code = "invalid_expression"
	CodeMissingCondition      Code = "missing_condition"
	CodeMissingRuleValue      Code = "missing_rule_value"
	CodeInvalidRuleValue      Code = "invalid_rule_value"
)

// Shape codes reported when a raw definition does not match the fixed schema.
const (
	CodeInvalidEnumValue Code = "invalid_enum_value"
	CodeTooSmall         Code = "too_small"
	CodeUnrecognizedKeys Code = "unrecognized_keys"
	CodeUnknownRule      Code = "unknown_rule"
	CodeInvalidShape     Code = "invalid_shape"
)

// Form-level paths.
const (
	PathForm          = "form"
	PathFormBranching = "form.branching"
)

// ValidationError is the single error contract crossing the engine boundary.
type ValidationError struct {
	Path    string `json:"path"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface so callers can wrap a ValidationError
// when convenient.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

// FieldPath returns the canonical path for a field-level error.
func FieldPath(id string) string {
	return "field." + id
}

// BranchingPath returns the path used for a field's branching expressions.
func BranchingPath(id string) string {
	return FieldPath(id) + ".branching"
}

// RulePath returns the path of the index-th validation rule on a field.
func RulePath(id string, index int) string {
	return FieldPath(id) + ".validation." + strconv.Itoa(index)
}

// HasCode reports whether any error in errs carries code.
func HasCode(errs []ValidationError, code Code) bool {
	for _, err := range errs {
		if err.Code == code {
			return true
		}
	}
	return false
}

// Codes returns the distinct codes present in errs, sorted.
func Codes(errs []ValidationError) []Code {
	if len(errs) == 0 {
		return nil
	}
	seen := make(map[Code]struct{}, len(errs))
	out := make([]Code, 0, len(errs))
	for _, err := range errs {
		if _, ok := seen[err.Code]; ok {
			continue
		}
		seen[err.Code] = struct{}{}
		out = append(out, err.Code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
