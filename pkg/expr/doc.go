// Package expr implements the comparison language used by field branching and
// conditional validation rules.
//
// An expression is a single binary comparison:
//
//	<left> <operator> <right>
//
// where the operator is one of ==, =, !=, >, <, >=, <= (== and = are
// synonyms). Each operand is resolved at evaluation time: a token that is a key
// of the answer map reads that answer, anything else is a literal (quoted
// string, true/false, number, or the bare token itself). The nullary function
// today() is replaced with the current date (YYYY-MM-DD) before parsing.
//
// Evaluation never fails loudly. Evaluate returns false for malformed input;
// Check exposes the underlying fault for authoring tools.
package expr
