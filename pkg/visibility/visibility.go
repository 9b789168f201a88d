// Package visibility decides which fields of a form are shown for a given
// answer set.
package visibility

import "github.com/goliatone/go-formrules/pkg/schema"

// Evaluator decides whether an expression holds for an answer set. The expr
// package provides the standard implementation.
type Evaluator interface {
	Evaluate(expression string, answers schema.AnswerMap) bool
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(expression string, answers schema.AnswerMap) bool

// Evaluate delegates to the underlying function.
func (fn EvaluatorFunc) Evaluate(expression string, answers schema.AnswerMap) bool {
	return fn(expression, answers)
}
