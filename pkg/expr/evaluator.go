package expr

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formrules/pkg/schema"
)

const (
	todayToken = "today()"
	dateLayout = "2006-01-02"
)

// Evaluator resolves expressions against an answer map. It holds no mutable
// state, so one instance can be shared across goroutines.
type Evaluator struct {
	now    func() time.Time
	logger zerolog.Logger
}

// Option customises an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the clock used for today().
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger used to report swallowed evaluation faults.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New constructs an Evaluator. Without options it uses time.Now and a no-op
// logger.
func New(options ...Option) *Evaluator {
	e := &Evaluator{
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e
}

var defaultEvaluator = New()

// Evaluate runs expression against answers with the default evaluator.
func Evaluate(expression string, answers schema.AnswerMap) bool {
	return defaultEvaluator.Evaluate(expression, answers)
}

// Evaluate reports whether expression holds for answers. Malformed
// expressions evaluate to false.
func (e *Evaluator) Evaluate(expression string, answers schema.AnswerMap) bool {
	ok, err := e.Check(expression, answers)
	if err != nil {
		e.logger.Debug().
			Str("expression", expression).
			Err(err).
			Msg("expression evaluated to false after fault")
		return false
	}
	return ok
}

// Check is the strict form of Evaluate: it returns the parse or evaluation
// fault instead of hiding it.
func (e *Evaluator) Check(expression string, answers schema.AnswerMap) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("expr: evaluate %q: %v", expression, r)
		}
	}()

	cmp, err := Parse(e.Expand(expression))
	if err != nil {
		return false, err
	}
	left := resolveOperand(cmp.Left, answers)
	right := resolveOperand(cmp.Right, answers)
	return compare(left, cmp.Operator, right)
}

// Today returns the current date in the form substituted for today().
func (e *Evaluator) Today() string {
	return e.now().Format(dateLayout)
}

// Expand replaces every today() call in expression with the current date.
func (e *Evaluator) Expand(expression string) string {
	if !strings.Contains(expression, todayToken) {
		return expression
	}
	return strings.ReplaceAll(expression, todayToken, e.Today())
}

// resolveOperand reads token from answers when it names a key, otherwise
// parses it as a literal. Quoted tokens are always string literals.
func resolveOperand(token string, answers schema.AnswerMap) any {
	if value, quoted := unquote(token); quoted {
		return value
	}
	if value, ok := answers.Lookup(token); ok {
		return value
	}
	return literal(token)
}

func literal(token string) any {
	switch token {
	case "true":
		return true
	case "false":
		return false
	}
	if number, ok := parseNumber(token); ok {
		return number
	}
	return token
}

func unquote(token string) (string, bool) {
	if len(token) < 2 {
		return "", false
	}
	quote := token[0]
	if quote != '\'' && quote != '"' {
		return "", false
	}
	if token[len(token)-1] != quote {
		return "", false
	}
	body := token[1 : len(token)-1]
	if !strings.Contains(body, `\`) {
		return body, true
	}
	var b strings.Builder
	escaped := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), true
}
