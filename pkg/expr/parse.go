package expr

import (
	"errors"
	"fmt"
	"strings"
)

// Operator is a comparison operator.
type Operator string

const (
	OpEqual        Operator = "=="
	OpAssign       Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// searchOrder lists operators in the order they are looked for. Two-character
// operators come first so ">=" is never split on "=" or ">".
var searchOrder = []Operator{
	OpEqual,
	OpNotEqual,
	OpGreaterEqual,
	OpLessEqual,
	OpAssign,
	OpGreater,
	OpLess,
}

var (
	ErrEmptyExpression = errors.New("expr: empty expression")
	ErrNoOperator      = errors.New("expr: no comparison operator")
	ErrOperandCount    = errors.New("expr: expression must have exactly two operands")
	ErrEmptyOperand    = errors.New("expr: empty operand")
)

// Comparison is a parsed expression. Operands keep their source text; they
// are resolved against answers only when evaluated.
type Comparison struct {
	Left     string
	Operator Operator
	Right    string
}

// String renders the comparison back to source form.
func (c Comparison) String() string {
	return c.Left + " " + string(c.Operator) + " " + c.Right
}

// Parse splits expression around the first operator found in search order.
// Splitting must yield exactly two non-empty operands.
func Parse(expression string) (Comparison, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return Comparison{}, ErrEmptyExpression
	}

	for _, op := range searchOrder {
		if !strings.Contains(trimmed, string(op)) {
			continue
		}
		parts := strings.Split(trimmed, string(op))
		if len(parts) != 2 {
			return Comparison{}, fmt.Errorf("%w: %q splits into %d parts on %q", ErrOperandCount, trimmed, len(parts), op)
		}
		left := strings.TrimSpace(parts[0])
		right := strings.TrimSpace(parts[1])
		if left == "" || right == "" {
			return Comparison{}, fmt.Errorf("%w in %q", ErrEmptyOperand, trimmed)
		}
		return Comparison{Left: left, Operator: op, Right: right}, nil
	}

	return Comparison{}, fmt.Errorf("%w in %q", ErrNoOperator, trimmed)
}
