// Package validation checks form definitions at authoring time.
//
// A raw definition first has to match the fixed shape published by
// DefinitionSchema. When it does, the typed definition is checked for
// duplicate identifiers, missing options, dangling and malformed expressions,
// rule compatibility and dependency cycles. Those checks all run and their
// errors are returned together.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/graph"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/schema"
)

// DefinitionValidator runs the authoring-time pipeline.
type DefinitionValidator struct {
	maxDepth int
	logger   zerolog.Logger
}

// Option customises a DefinitionValidator.
type Option func(*DefinitionValidator)

// WithMaxDepth bounds the dependency walk used for cycle detection.
func WithMaxDepth(depth int) Option {
	return func(v *DefinitionValidator) {
		if depth > 0 {
			v.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used to trace the pipeline.
func WithLogger(logger zerolog.Logger) Option {
	return func(v *DefinitionValidator) {
		v.logger = logger
	}
}

// NewDefinitionValidator constructs a validator.
func NewDefinitionValidator(options ...Option) *DefinitionValidator {
	v := &DefinitionValidator{
		maxDepth: graph.DefaultMaxDepth,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(v)
	}
	return v
}

// Validate accepts JSON bytes, a string, a schema.Document, a decoded JSON
// value or a schema.FormDefinition. A shape failure is returned alone; every
// other problem is accumulated into one list.
func (v *DefinitionValidator) Validate(raw any) []schema.ValidationError {
	value, err := decodeValue(raw)
	if err != nil {
		return []schema.ValidationError{{Path: schema.PathForm, Code: schema.CodeInvalidShape, Message: err.Error()}}
	}
	if errs := ValidateShape(value); len(errs) > 0 {
		v.logger.Debug().Int("errors", len(errs)).Msg("definition shape rejected")
		return errs
	}

	def, err := schema.DefinitionFromValue(value)
	if err != nil {
		return []schema.ValidationError{{Path: schema.PathForm, Code: schema.CodeInvalidShape, Message: err.Error()}}
	}
	errs := v.ValidateDefinition(def)
	v.logger.Debug().Int("errors", len(errs)).Msg("definition validated")
	return errs
}

// ValidateDefinition runs every check after the shape step on an already
// typed definition.
func (v *DefinitionValidator) ValidateDefinition(def schema.FormDefinition) []schema.ValidationError {
	var errs []schema.ValidationError
	errs = append(errs, duplicateIDs(def)...)
	errs = append(errs, missingOptions(def)...)

	index := def.FieldIndex()
	for _, field := range def.Fields() {
		errs = append(errs, branchingErrors(field, index)...)
		errs = append(errs, ruleErrors(field, index)...)
	}

	errs = append(errs, v.cycleErrors(def)...)
	return errs
}

// ValidateFormDefinition validates raw with a default DefinitionValidator.
func ValidateFormDefinition(raw any) []schema.ValidationError {
	return NewDefinitionValidator().Validate(raw)
}

func duplicateIDs(def schema.FormDefinition) []schema.ValidationError {
	var errs []schema.ValidationError
	seen := make(map[string]schema.NodeKind)
	reported := make(map[string]bool)
	for _, node := range def.Nodes() {
		first, ok := seen[node.ID]
		if !ok {
			seen[node.ID] = node.Kind
			continue
		}
		if reported[node.ID] {
			continue
		}
		reported[node.ID] = true
		errs = append(errs, schema.ValidationError{
			Path:    string(node.Kind) + "." + node.ID,
			Code:    schema.CodeDuplicateFieldID,
			Message: fmt.Sprintf("identifier %q is already used by a %s", node.ID, first),
		})
	}
	return errs
}

func missingOptions(def schema.FormDefinition) []schema.ValidationError {
	var errs []schema.ValidationError
	for _, field := range def.Fields() {
		if !field.Type.HasOptions() || len(field.Options) > 0 {
			continue
		}
		errs = append(errs, schema.ValidationError{
			Path:    schema.FieldPath(field.ID),
			Code:    schema.CodeMissingOptions,
			Message: fmt.Sprintf("%s field %q must declare at least one option", field.Type, field.ID),
		})
	}
	return errs
}

func branchingErrors(field schema.Field, index map[string]schema.Field) []schema.ValidationError {
	var errs []schema.ValidationError
	path := schema.BranchingPath(field.ID)
	for _, clause := range []struct {
		name       string
		expression string
	}{
		{name: "showIf", expression: field.ShowIf()},
		{name: "hideIf", expression: field.HideIf()},
	} {
		if clause.expression == "" {
			continue
		}
		errs = append(errs, expressionErrors(path, clause.name, clause.expression, index)...)
	}
	return errs
}

func ruleErrors(field schema.Field, index map[string]schema.Field) []schema.ValidationError {
	var errs []schema.ValidationError
	for i, rule := range field.Validation {
		path := schema.RulePath(field.ID, i)
		if !rule.Rule.Valid() {
			errs = append(errs, schema.ValidationError{
				Path:    path,
				Code:    schema.CodeUnknownRule,
				Message: fmt.Sprintf("unknown rule %q", rule.Rule),
			})
			continue
		}
		// Every condition feeds the dependency graph, so its references are
		// checked whatever the rule kind.
		if condition := strings.TrimSpace(rule.Condition); condition != "" {
			errs = append(errs, expressionErrors(path, "condition", condition, index)...)
		}
		if !rules.Compatible(field.Type, rule.Rule) {
			errs = append(errs, schema.ValidationError{
				Path:    path,
				Code:    schema.CodeIncompatibleRule,
				Message: fmt.Sprintf("rule %q cannot be applied to a %s field", rule.Rule, field.Type),
			})
			continue
		}
		if _, err := rules.Compile(field.Type, rule); err != nil {
			errs = append(errs, schema.ValidationError{
				Path:    path,
				Code:    argumentCode(err),
				Message: err.Error(),
			})
		}
	}
	return errs
}

func expressionErrors(path, clause, expression string, index map[string]schema.Field) []schema.ValidationError {
	var errs []schema.ValidationError
	if _, err := expr.Parse(expression); err != nil {
		errs = append(errs, schema.ValidationError{
			Path:    path,
			Code:    schema.CodeInvalidExpression,
			Message: fmt.Sprintf("%s %q: %v", clause, expression, err),
		})
	}
	for _, ref := range expr.ExtractFieldReferences(expression) {
		if _, ok := index[ref]; ok {
			continue
		}
		errs = append(errs, schema.ValidationError{
			Path:    path,
			Code:    schema.CodeInvalidFieldReference,
			Message: fmt.Sprintf("%s references unknown field %q", clause, ref),
		})
	}
	return errs
}

func argumentCode(err error) schema.Code {
	switch {
	case errors.Is(err, rules.ErrMissingCondition):
		return schema.CodeMissingCondition
	case errors.Is(err, rules.ErrMissingValue):
		return schema.CodeMissingRuleValue
	case errors.Is(err, rules.ErrUnknownRule):
		return schema.CodeUnknownRule
	default:
		return schema.CodeInvalidRuleValue
	}
}

func (v *DefinitionValidator) cycleErrors(def schema.FormDefinition) []schema.ValidationError {
	cycles, err := graph.DetectCycles(graph.Build(def), graph.WithMaxDepth(v.maxDepth))
	if errors.Is(err, graph.ErrDepthExceeded) {
		return []schema.ValidationError{{
			Path:    schema.PathFormBranching,
			Code:    schema.CodeDependencyDepth,
			Message: err.Error(),
		}}
	}
	var errs []schema.ValidationError
	for _, cycle := range cycles {
		errs = append(errs, schema.ValidationError{
			Path:    schema.PathFormBranching,
			Code:    schema.CodeCircularDependency,
			Message: "circular dependency: " + strings.Join(cycle, " -> "),
		})
	}
	return errs
}
