// Package prompt fills in a form interactively. Fields are asked in
// dependency order, visibility is re-resolved after every answer, and each
// answer is checked with the rules validator before moving on.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/graph"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/schema"
	"github.com/goliatone/go-formrules/pkg/visibility"
)

const defaultMaxAttempts = 3

// Option configures a Collector.
type Option func(*Collector)

// WithPromptDriver overrides the prompt driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(c *Collector) {
		if driver != nil {
			c.driver = driver
		}
	}
}

// WithEvaluator swaps the evaluator used for branching.
func WithEvaluator(evaluator visibility.Evaluator) Option {
	return func(c *Collector) {
		c.evaluator = evaluator
	}
}

// WithValidator swaps the rules validator used to check each answer.
func WithValidator(validator *rules.Validator) Option {
	return func(c *Collector) {
		c.validator = validator
	}
}

// WithMaxAttempts bounds how often a field is asked again after failing
// validation.
func WithMaxAttempts(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// Collector asks for the visible fields of a definition.
type Collector struct {
	driver      PromptDriver
	evaluator   visibility.Evaluator
	validator   *rules.Validator
	maxAttempts int
	logger      zerolog.Logger
}

// NewCollector constructs a Collector. Without WithPromptDriver it prompts on
// the terminal through survey.
func NewCollector(options ...Option) *Collector {
	c := &Collector{
		maxAttempts: defaultMaxAttempts,
		logger:      zerolog.Nop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.driver == nil {
		c.driver = NewSurveyDriver(nil)
	}
	if c.evaluator == nil {
		c.evaluator = expr.New(expr.WithLogger(c.logger))
	}
	if c.validator == nil {
		c.validator = rules.NewValidator(rules.WithEvaluator(c.evaluator), rules.WithLogger(c.logger))
	}
	return c
}

// Collect prompts for every field that is visible given the answers so far
// and returns the resulting answer map. prefill seeds defaults and is not
// modified. Answers of fields that end up hidden are dropped.
func (c *Collector) Collect(ctx context.Context, def schema.FormDefinition, prefill schema.AnswerMap) (schema.AnswerMap, error) {
	if ctx == nil {
		return nil, errors.New("prompt: context is required")
	}

	order, err := graph.TopologicalOrder(graph.Build(def))
	if err != nil {
		c.logger.Warn().Err(err).Msg("dependency order unavailable, prompting in declaration order")
		order = def.FieldIDs()
	}

	answers := make(schema.AnswerMap, len(prefill))
	for key, value := range prefill {
		answers[key] = value
	}
	resolver := visibility.NewResolver(visibility.WithEvaluator(c.evaluator))
	index := def.FieldIndex()

	for _, id := range order {
		field, ok := index[id]
		if !ok {
			continue
		}
		if !resolver.Visible(field, answers) {
			delete(answers, id)
			c.logger.Debug().Str("field", id).Msg("field hidden, skipped")
			continue
		}
		value, err := c.ask(ctx, field, answers)
		if err != nil {
			return nil, err
		}
		if rules.IsEmpty(value) {
			delete(answers, id)
			continue
		}
		answers[id] = value
	}

	visible := resolver.Resolve(def, answers)
	for id := range answers {
		if !visible[id] {
			delete(answers, id)
		}
	}
	return answers, nil
}

func (c *Collector) ask(ctx context.Context, field schema.Field, answers schema.AnswerMap) (any, error) {
	previous, _ := answers.Lookup(field.ID)
	for attempt := 1; ; attempt++ {
		value, err := c.prompt(ctx, field, previous)
		if err != nil {
			return nil, fmt.Errorf("prompt: %s: %w", field.ID, err)
		}

		scope := make(schema.AnswerMap, len(answers)+1)
		for key, existing := range answers {
			scope[key] = existing
		}
		scope[field.ID] = value

		errs := c.validator.ValidateField(field, value, scope)
		if len(errs) == 0 {
			return value, nil
		}
		for _, verr := range errs {
			if err := c.driver.Info(ctx, "  ! "+messageFor(verr)); err != nil {
				return nil, err
			}
		}
		if attempt >= c.maxAttempts {
			return nil, fmt.Errorf("%w: %s", ErrTooManyAttempts, field.ID)
		}
		previous = value
	}
}

func (c *Collector) prompt(ctx context.Context, field schema.Field, previous any) (any, error) {
	message := field.Label
	if strings.TrimSpace(message) == "" {
		message = field.ID
	}

	switch field.Type {
	case schema.FieldTypeSingleSelect:
		idx, err := c.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      field.Options,
			DefaultIndex: indexOf(field.Options, expr.Stringify(previous)),
			Help:         field.HelpText,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(field.Options) {
			return nil, nil
		}
		return field.Options[idx], nil
	case schema.FieldTypeMultiselect:
		indices, err := c.driver.MultiSelect(ctx, SelectConfig{
			Message:  message,
			Options:  field.Options,
			Defaults: previousIndices(field.Options, previous),
			Help:     field.HelpText,
		})
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(indices))
		for _, idx := range indices {
			if idx >= 0 && idx < len(field.Options) {
				out = append(out, field.Options[idx])
			}
		}
		return out, nil
	case schema.FieldTypeTextarea:
		return c.driver.TextArea(ctx, TextAreaConfig{
			Message: message,
			Default: expr.Stringify(previous),
			Help:    field.HelpText,
		})
	default:
		raw, err := c.driver.Input(ctx, InputConfig{
			Message: message,
			Default: expr.Stringify(previous),
			Help:    field.HelpText,
		})
		if err != nil {
			return nil, err
		}
		raw = strings.TrimSpace(raw)
		if field.Type == schema.FieldTypeNumber {
			if n, ok := expr.ToNumber(raw); ok {
				return n, nil
			}
		}
		return raw, nil
	}
}

func previousIndices(options []string, previous any) []int {
	values, ok := previous.([]any)
	if !ok {
		return nil
	}
	selected := make([]string, 0, len(values))
	for _, value := range values {
		selected = append(selected, expr.Stringify(value))
	}
	return indicesOf(options, selected)
}

func messageFor(err schema.ValidationError) string {
	if msg := strings.TrimSpace(err.Message); msg != "" {
		return msg
	}
	return string(err.Code)
}
