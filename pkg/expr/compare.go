package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func compare(left any, op Operator, right any) (bool, error) {
	switch op {
	case OpEqual, OpAssign:
		return LooseEqual(left, right), nil
	case OpNotEqual:
		return !LooseEqual(left, right), nil
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		order := Order(left, right)
		switch op {
		case OpGreater:
			return order > 0, nil
		case OpLess:
			return order < 0, nil
		case OpGreaterEqual:
			return order >= 0, nil
		default:
			return order <= 0, nil
		}
	default:
		return false, fmt.Errorf("expr: unsupported operator %q", op)
	}
}

// Order compares two operands for the relational operators. Numbers compare
// numerically when both sides parse as numbers, then dates when both sides
// parse as dates, and finally strings lexicographically.
func Order(left, right any) int {
	if x, ok := ToNumber(left); ok {
		if y, ok := ToNumber(right); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	if x, ok := ToDate(left); ok {
		if y, ok := ToDate(right); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(Stringify(left), Stringify(right))
}

// LooseEqual compares two values with coercion: booleans become 1/0, numeric
// strings compare equal to numbers, and arrays compare by their
// comma-joined string form. Two nils are equal; nil equals nothing else.
func LooseEqual(left, right any) bool {
	left, right = normalize(left), normalize(right)
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	if flag, ok := left.(bool); ok {
		if other, ok := right.(bool); ok {
			return flag == other
		}
		return LooseEqual(boolNumber(flag), right)
	}
	if flag, ok := right.(bool); ok {
		return LooseEqual(left, boolNumber(flag))
	}

	switch x := left.(type) {
	case float64:
		switch y := right.(type) {
		case float64:
			return x == y
		case string:
			n, ok := stringNumber(y)
			return ok && x == n
		case []any:
			return LooseEqual(x, joinArray(y))
		}
	case string:
		switch y := right.(type) {
		case string:
			return x == y
		case float64:
			n, ok := stringNumber(x)
			return ok && n == y
		case []any:
			return x == joinArray(y)
		}
	case []any:
		if _, ok := right.([]any); ok {
			return false
		}
		return LooseEqual(joinArray(x), right)
	}
	return Stringify(left) == Stringify(right)
}

// ToNumber reports the numeric value of v when it is a number or a string
// holding one.
func ToNumber(v any) (float64, bool) {
	switch n := normalize(v).(type) {
	case float64:
		return n, !math.IsNaN(n)
	case string:
		return parseNumber(n)
	default:
		return 0, false
	}
}

// ToDate reports the calendar date held by v, if any.
func ToDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		return ParseDate(d)
	default:
		return time.Time{}, false
	}
}

// ParseDate parses the date layouts accepted in answers and rule bounds.
func ParseDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Stringify renders v the way string comparisons see it.
func Stringify(v any) string {
	switch s := normalize(v).(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case []any:
		return joinArray(s)
	case time.Time:
		return s.Format(dateLayout)
	default:
		return fmt.Sprint(s)
	}
}

func parseNumber(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	switch c := trimmed[0]; {
	case c >= '0' && c <= '9', c == '-', c == '+', c == '.':
	default:
		return 0, false
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// stringNumber converts a string for loose equality. A blank string counts
// as zero.
func stringNumber(raw string) (float64, bool) {
	if strings.TrimSpace(raw) == "" {
		return 0, true
	}
	return parseNumber(raw)
}

func boolNumber(flag bool) float64 {
	if flag {
		return 1
	}
	return 0
}

func joinArray(values []any) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, Stringify(value))
	}
	return strings.Join(parts, ",")
}

// normalize folds the numeric and slice types callers may place in an answer
// map into float64 and []any.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case []string:
		out := make([]any, len(n))
		for i, s := range n {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(n))
		for i, f := range n {
			out[i] = f
		}
		return out
	default:
		return v
	}
}
