// Package formrules is the quick-start entry point of the form rule engine.
// It re-exports the engine constructor and the stateless operations so
// callers that only need defaults can stay on one import.
package formrules

import (
	"github.com/goliatone/go-formrules/pkg/engine"
	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/graph"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/schema"
	"github.com/goliatone/go-formrules/pkg/validation"
	"github.com/goliatone/go-formrules/pkg/visibility"
)

// FormDefinition aliases schema.FormDefinition.
type FormDefinition = schema.FormDefinition

// Field aliases schema.Field.
type Field = schema.Field

// AnswerMap aliases schema.AnswerMap.
type AnswerMap = schema.AnswerMap

// ValidationError aliases schema.ValidationError, the error contract shared
// by every operation.
type ValidationError = schema.ValidationError

// Result aliases engine.Result.
type Result = engine.Result

// NewEngine exposes the engine constructor from the top-level module.
func NewEngine(options ...engine.Option) *engine.Engine {
	return engine.New(options...)
}

// EvaluateExpression evaluates a single comparison against answers. Malformed
// expressions evaluate to false.
func EvaluateExpression(expression string, answers AnswerMap) bool {
	return expr.Evaluate(expression, answers)
}

// ExtractFieldReferences lists the field ids an expression reads.
func ExtractFieldReferences(expression string) []string {
	return expr.ExtractFieldReferences(expression)
}

// BuildDependencyGraph maps each field to the fields its expressions read.
func BuildDependencyGraph(def FormDefinition) map[string][]string {
	return graph.Build(def).Map()
}

// DetectCycles reports each dependency cycle as a path that starts and ends
// with the same field.
func DetectCycles(adjacency map[string][]string) ([][]string, error) {
	return graph.DetectCycles(graph.FromMap(adjacency))
}

// TopologicalSort orders fields so dependencies come first.
func TopologicalSort(adjacency map[string][]string) ([]string, error) {
	return graph.TopologicalOrder(graph.FromMap(adjacency))
}

// ResolveVisibility maps every field id to whether it is shown.
func ResolveVisibility(def FormDefinition, answers AnswerMap) map[string]bool {
	return visibility.ResolveVisibility(def, answers)
}

// ValidateField checks value against the field's rules and type.
func ValidateField(field Field, value any, answers AnswerMap) []ValidationError {
	return rules.ValidateField(field, value, answers)
}

// ValidateFormDefinition runs the authoring-time checks. raw may be JSON
// bytes, a string, a decoded JSON value or a FormDefinition.
func ValidateFormDefinition(raw any) []ValidationError {
	return validation.ValidateFormDefinition(raw)
}

// ValidateSubmission resolves visibility and validates every visible field
// with a default engine.
func ValidateSubmission(def FormDefinition, answers AnswerMap) Result {
	return engine.New().ValidateSubmission(def, answers)
}
