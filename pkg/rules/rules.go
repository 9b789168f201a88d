// Package rules evaluates the validation rules attached to form fields.
//
// Authored rules are compiled into one variant per rule kind. The Rule
// interface is sealed, so the set of variants is closed and every switch over
// them lives in this package.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/schema"
)

const todayBound = "today()"

var (
	ErrUnknownRule      = errors.New("rules: unknown rule kind")
	ErrMissingCondition = errors.New("rules: condition is required")
	ErrMissingValue     = errors.New("rules: value is required")
	ErrInvalidValue     = errors.New("rules: invalid rule value")
)

// Rule is a compiled validation rule.
type Rule interface {
	Kind() schema.RuleKind
	Message() string
	sealed()
}

// Required fails when the value is empty.
type Required struct {
	message string
}

// RequiredIf fails when Condition holds and the value is empty.
type RequiredIf struct {
	Condition string
	message   string
}

// Min fails when a non-empty value is below Bound.
type Min struct {
	Bound   Bound
	message string
}

// Max fails when a non-empty value is above Bound.
type Max struct {
	Bound   Bound
	message string
}

// Regex fails when a non-empty value does not match Pattern. A nil pattern
// (the authored expression did not compile) never fails.
type Regex struct {
	Source  string
	Pattern *regexp.Regexp
	message string
}

// CrossField fails when Condition does not hold for the answer map.
type CrossField struct {
	Condition string
	message   string
}

func (Required) Kind() schema.RuleKind   { return schema.RuleRequired }
func (RequiredIf) Kind() schema.RuleKind { return schema.RuleRequiredIf }
func (Min) Kind() schema.RuleKind        { return schema.RuleMin }
func (Max) Kind() schema.RuleKind        { return schema.RuleMax }
func (Regex) Kind() schema.RuleKind      { return schema.RuleRegex }
func (CrossField) Kind() schema.RuleKind { return schema.RuleCrossField }

func (r Required) Message() string   { return r.message }
func (r RequiredIf) Message() string { return r.message }
func (r Min) Message() string        { return r.message }
func (r Max) Message() string        { return r.message }
func (r Regex) Message() string      { return r.message }
func (r CrossField) Message() string { return r.message }

func (Required) sealed()   {}
func (RequiredIf) sealed() {}
func (Min) sealed()        {}
func (Max) sealed()        {}
func (Regex) sealed()      {}
func (CrossField) sealed() {}

// BoundKind tells how a min/max bound is compared.
type BoundKind int

const (
	BoundNumber BoundKind = iota
	BoundDate
)

// Bound is a parsed min/max argument. Date bounds may be today(), which is
// resolved when the rule runs.
type Bound struct {
	Kind   BoundKind
	Number float64
	Date   string
}

// Compile turns an authored rule on a field of the given type into its
// variant. The error wraps one of the package sentinels.
func Compile(fieldType schema.FieldType, rule schema.ValidationRule) (Rule, error) {
	switch rule.Rule {
	case schema.RuleRequired:
		return Required{message: rule.Message}, nil
	case schema.RuleRequiredIf:
		condition := strings.TrimSpace(rule.Condition)
		if condition == "" {
			return nil, fmt.Errorf("%w for %s", ErrMissingCondition, rule.Rule)
		}
		return RequiredIf{Condition: condition, message: rule.Message}, nil
	case schema.RuleMin, schema.RuleMax:
		bound, err := parseBound(fieldType, rule.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Rule, err)
		}
		if rule.Rule == schema.RuleMin {
			return Min{Bound: bound, message: rule.Message}, nil
		}
		return Max{Bound: bound, message: rule.Message}, nil
	case schema.RuleRegex:
		if rule.Value.Empty() {
			return nil, fmt.Errorf("%w for %s", ErrMissingValue, rule.Rule)
		}
		source := rule.Value.String()
		pattern, err := regexp.Compile(source)
		if err != nil {
			return Regex{Source: source, message: rule.Message}, fmt.Errorf("%w: regex %q: %v", ErrInvalidValue, source, err)
		}
		return Regex{Source: source, Pattern: pattern, message: rule.Message}, nil
	case schema.RuleCrossField:
		condition := strings.TrimSpace(rule.Condition)
		if condition == "" {
			return nil, fmt.Errorf("%w for %s", ErrMissingCondition, rule.Rule)
		}
		return CrossField{Condition: condition, message: rule.Message}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownRule, rule.Rule)
	}
}

// Compatible reports whether a rule kind makes sense on a field type: min and
// max need number or date fields, regex needs text or textarea.
func Compatible(fieldType schema.FieldType, kind schema.RuleKind) bool {
	switch kind {
	case schema.RuleMin, schema.RuleMax:
		return fieldType == schema.FieldTypeNumber || fieldType == schema.FieldTypeDate
	case schema.RuleRegex:
		return fieldType == schema.FieldTypeText || fieldType == schema.FieldTypeTextarea
	default:
		return kind.Valid()
	}
}

func parseBound(fieldType schema.FieldType, value schema.RuleValue) (Bound, error) {
	if value.Empty() {
		return Bound{}, ErrMissingValue
	}
	raw := strings.TrimSpace(value.String())
	if fieldType == schema.FieldTypeDate {
		if raw == todayBound {
			return Bound{Kind: BoundDate, Date: todayBound}, nil
		}
		if _, ok := expr.ParseDate(raw); !ok {
			return Bound{}, fmt.Errorf("%w: %q is not a date", ErrInvalidValue, raw)
		}
		return Bound{Kind: BoundDate, Date: raw}, nil
	}
	number, ok := expr.ToNumber(raw)
	if !ok {
		return Bound{}, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
	}
	return Bound{Kind: BoundNumber, Number: number}, nil
}
