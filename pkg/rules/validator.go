package rules

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/schema"
	"github.com/goliatone/go-formrules/pkg/visibility"
)

// Validator checks field values against their rules. Compiled rules are
// cached by field type and authored rule, so a regex is compiled once per
// validator. It is safe for concurrent use.
type Validator struct {
	evaluator visibility.Evaluator
	now       func() time.Time
	logger    zerolog.Logger
	compiled  sync.Map // compileKey -> compileResult
}

type compileKey struct {
	fieldType schema.FieldType
	rule      schema.ValidationRule
}

type compileResult struct {
	rule Rule
	err  error
}

// Option customises a Validator.
type Option func(*Validator)

// WithEvaluator sets the evaluator used for requiredIf and cross_field
// conditions.
func WithEvaluator(evaluator visibility.Evaluator) Option {
	return func(v *Validator) {
		v.evaluator = evaluator
	}
}

// WithClock sets the clock used to resolve today() date bounds.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the logger used for rules that are skipped because they
// cannot run, such as malformed regex patterns.
func WithLogger(logger zerolog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator constructs a Validator. Without WithEvaluator it evaluates
// conditions with expr.New sharing the validator clock and logger.
func NewValidator(options ...Option) *Validator {
	v := &Validator{
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(v)
	}
	if v.evaluator == nil {
		v.evaluator = expr.New(expr.WithClock(v.now), expr.WithLogger(v.logger))
	}
	return v
}

// ValidateField runs every rule on field against value, then the option and
// type checks implied by the field type. All failures are returned.
func (v *Validator) ValidateField(field schema.Field, value any, answers schema.AnswerMap) []schema.ValidationError {
	var errs []schema.ValidationError
	path := schema.FieldPath(field.ID)
	typed := v.typeErrors(field, value)
	scope := withValue(answers, field.ID, value)

	for i, authored := range field.Validation {
		rule, err := v.compile(field.Type, authored)
		if err != nil {
			v.logger.Warn().
				Str("field", field.ID).
				Int("rule", i).
				Str("kind", string(authored.Rule)).
				Str("pattern", authored.Value.String()).
				Err(err).
				Msg("validation rule skipped")
			continue
		}
		if len(typed) > 0 && (rule.Kind() == schema.RuleMin || rule.Kind() == schema.RuleMax) {
			continue
		}
		if v.fails(rule, field, value, scope) {
			errs = append(errs, schema.ValidationError{
				Path:    path,
				Code:    schema.Code(rule.Kind()),
				Message: rule.Message(),
			})
		}
	}

	return append(errs, typed...)
}

func (v *Validator) compile(fieldType schema.FieldType, authored schema.ValidationRule) (Rule, error) {
	key := compileKey{fieldType: fieldType, rule: authored}
	if cached, ok := v.compiled.Load(key); ok {
		result := cached.(compileResult)
		return result.rule, result.err
	}
	rule, err := Compile(fieldType, authored)
	v.compiled.Store(key, compileResult{rule: rule, err: err})
	return rule, err
}

func (v *Validator) fails(rule Rule, field schema.Field, value any, answers schema.AnswerMap) bool {
	switch r := rule.(type) {
	case Required:
		return IsEmpty(value)
	case RequiredIf:
		return IsEmpty(value) && v.evaluator.Evaluate(r.Condition, answers)
	case Min:
		if IsEmpty(value) {
			return false
		}
		order, ok := v.compareBound(field.Type, value, r.Bound)
		return ok && order < 0
	case Max:
		if IsEmpty(value) {
			return false
		}
		order, ok := v.compareBound(field.Type, value, r.Bound)
		return ok && order > 0
	case Regex:
		if IsEmpty(value) || r.Pattern == nil {
			return false
		}
		return !r.Pattern.MatchString(expr.Stringify(value))
	case CrossField:
		return !v.evaluator.Evaluate(r.Condition, answers)
	default:
		return false
	}
}

// compareBound orders value against bound. ok is false when value cannot be
// read as the bound's kind.
func (v *Validator) compareBound(fieldType schema.FieldType, value any, bound Bound) (int, bool) {
	if bound.Kind == BoundDate || fieldType == schema.FieldTypeDate {
		date, ok := expr.ToDate(value)
		if !ok {
			return 0, false
		}
		raw := bound.Date
		if raw == todayBound {
			raw = v.now().Format("2006-01-02")
		}
		limit, ok := expr.ParseDate(raw)
		if !ok {
			return 0, false
		}
		return date.Compare(limit), true
	}
	number, ok := expr.ToNumber(value)
	if !ok {
		return 0, false
	}
	switch {
	case number < bound.Number:
		return -1, true
	case number > bound.Number:
		return 1, true
	default:
		return 0, true
	}
}

// typeErrors checks option membership for select fields and value types for
// number, date and multiselect fields. Empty values are left to
// required/requiredIf.
func (v *Validator) typeErrors(field schema.Field, value any) []schema.ValidationError {
	if IsEmpty(value) {
		return nil
	}
	path := schema.FieldPath(field.ID)
	name := displayName(field)

	switch field.Type {
	case schema.FieldTypeSingleSelect:
		choice := expr.Stringify(value)
		if !field.HasOption(choice) {
			return []schema.ValidationError{{
				Path:    path,
				Code:    schema.CodeInvalidOption,
				Message: fmt.Sprintf("%q is not a valid option for %s", choice, name),
			}}
		}
	case schema.FieldTypeMultiselect:
		values, ok := asList(value)
		if !ok {
			return []schema.ValidationError{{
				Path:    path,
				Code:    schema.CodeInvalidType,
				Message: fmt.Sprintf("%s expects a list of options", name),
			}}
		}
		var invalid []string
		for _, item := range values {
			choice := expr.Stringify(item)
			if !field.HasOption(choice) {
				invalid = append(invalid, fmt.Sprintf("%q", choice))
			}
		}
		if len(invalid) > 0 {
			return []schema.ValidationError{{
				Path:    path,
				Code:    schema.CodeInvalidOption,
				Message: fmt.Sprintf("invalid options for %s: %s", name, strings.Join(invalid, ", ")),
			}}
		}
	case schema.FieldTypeNumber:
		if _, ok := expr.ToNumber(value); !ok {
			return []schema.ValidationError{{
				Path:    path,
				Code:    schema.CodeInvalidType,
				Message: fmt.Sprintf("%s must be a number", name),
			}}
		}
	case schema.FieldTypeDate:
		if _, ok := expr.ToDate(value); !ok {
			return []schema.ValidationError{{
				Path:    path,
				Code:    schema.CodeInvalidType,
				Message: fmt.Sprintf("%s must be a date (YYYY-MM-DD)", name),
			}}
		}
	}
	return nil
}

// IsEmpty reports whether value counts as unanswered: nil, a blank string,
// or an empty list.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// ValidateField is Validator.ValidateField with a default validator.
func ValidateField(field schema.Field, value any, answers schema.AnswerMap) []schema.ValidationError {
	return NewValidator().ValidateField(field, value, answers)
}

// IsArgumentError reports whether err came from a rule whose arguments could
// not be compiled.
func IsArgumentError(err error) bool {
	return errors.Is(err, ErrMissingCondition) || errors.Is(err, ErrMissingValue) || errors.Is(err, ErrInvalidValue)
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// withValue returns answers with id set to value when the caller passed a
// value the map does not carry yet. answers is never modified.
func withValue(answers schema.AnswerMap, id string, value any) schema.AnswerMap {
	if value == nil {
		return answers
	}
	if _, ok := answers.Lookup(id); ok {
		return answers
	}
	out := make(schema.AnswerMap, len(answers)+1)
	for key, existing := range answers {
		out[key] = existing
	}
	out[id] = value
	return out
}

func displayName(field schema.Field) string {
	if label := strings.TrimSpace(field.Label); label != "" {
		return label
	}
	return field.ID
}
