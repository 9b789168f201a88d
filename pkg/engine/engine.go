package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formrules/internal/loader"
	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/graph"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/schema"
	"github.com/goliatone/go-formrules/pkg/validation"
	"github.com/goliatone/go-formrules/pkg/visibility"
)

// ErrInvalidDefinition wraps definitions rejected by the definition validator.
var ErrInvalidDefinition = errors.New("engine: invalid form definition")

// Option customises the engine configuration.
type Option func(*Engine)

// WithLogger sets the logger shared by every collaborator.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock fixes the clock used for today() in expressions and date bounds.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithEvaluator replaces the expression evaluator used for branching and
// rule conditions.
func WithEvaluator(evaluator visibility.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = evaluator
	}
}

// WithLoader injects the loader used by LoadDefinition and LoadAnswers.
func WithLoader(l schema.Loader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithLoaderOptions configures the built-in loader.
func WithLoaderOptions(options ...schema.LoaderOption) Option {
	return func(e *Engine) {
		e.loaderOptions = append(e.loaderOptions, options...)
	}
}

// WithSanitize strips markup from author-facing text of loaded definitions.
func WithSanitize(enabled bool) Option {
	return func(e *Engine) {
		e.sanitize = enabled
	}
}

// WithHiddenAnswerPruning makes visibility resolution drop the answers of
// hidden fields before evaluating later fields, so a field that depends only
// on hidden fields is hidden too.
func WithHiddenAnswerPruning(enabled bool) Option {
	return func(e *Engine) {
		e.prune = enabled
	}
}

// WithMaxDepth bounds dependency walks.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// Engine is safe for concurrent use once constructed. It keeps no state
// between calls.
type Engine struct {
	logger        zerolog.Logger
	now           func() time.Time
	evaluator     visibility.Evaluator
	loader        schema.Loader
	loaderOptions []schema.LoaderOption
	sanitize      bool
	prune         bool
	maxDepth      int

	resolver    *visibility.Resolver
	rules       *rules.Validator
	definitions *validation.DefinitionValidator
}

// New constructs an Engine applying any provided options.
func New(options ...Option) *Engine {
	e := &Engine{
		logger:   zerolog.Nop(),
		now:      time.Now,
		maxDepth: graph.DefaultMaxDepth,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	e.applyDefaults()
	return e
}

func (e *Engine) applyDefaults() {
	if e.evaluator == nil {
		e.evaluator = expr.New(expr.WithClock(e.now), expr.WithLogger(e.logger))
	}
	if e.loader == nil {
		e.loader = loader.New(schema.NewLoaderOptions(e.loaderOptions...)).WithLogger(e.logger)
	}
	e.resolver = visibility.NewResolver(visibility.WithEvaluator(e.evaluator))
	e.rules = rules.NewValidator(
		rules.WithEvaluator(e.evaluator),
		rules.WithClock(e.now),
		rules.WithLogger(e.logger),
	)
	e.definitions = validation.NewDefinitionValidator(
		validation.WithMaxDepth(e.maxDepth),
		validation.WithLogger(e.logger),
	)
}

// ValidateDefinition runs the authoring-time checks on raw. See
// validation.DefinitionValidator.Validate for the accepted inputs.
func (e *Engine) ValidateDefinition(raw any) []schema.ValidationError {
	return e.definitions.Validate(raw)
}

// DecodeDefinition validates a JSON definition and decodes it. Validation
// failures are returned as the error list together with ErrInvalidDefinition.
func (e *Engine) DecodeDefinition(raw []byte) (schema.FormDefinition, []schema.ValidationError, error) {
	doc, err := schema.NewDocument(schema.SourceFromFS("definition.json"), raw)
	if err != nil {
		return schema.FormDefinition{}, nil, err
	}
	return e.definitionFromDocument(doc)
}

// LoadDefinition loads, validates and decodes the definition at src.
func (e *Engine) LoadDefinition(ctx context.Context, src schema.Source) (schema.FormDefinition, []schema.ValidationError, error) {
	if ctx == nil {
		return schema.FormDefinition{}, nil, errors.New("engine: context is required")
	}
	doc, err := e.loader.Load(ctx, src)
	if err != nil {
		return schema.FormDefinition{}, nil, fmt.Errorf("engine: load definition: %w", err)
	}
	return e.definitionFromDocument(doc)
}

// LoadAnswers loads an answer map from src.
func (e *Engine) LoadAnswers(ctx context.Context, src schema.Source) (schema.AnswerMap, error) {
	if ctx == nil {
		return nil, errors.New("engine: context is required")
	}
	doc, err := e.loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("engine: load answers: %w", err)
	}
	return doc.Answers()
}

func (e *Engine) definitionFromDocument(doc schema.Document) (schema.FormDefinition, []schema.ValidationError, error) {
	if errs := e.definitions.Validate(doc); len(errs) > 0 {
		e.logger.Info().
			Str("source", doc.Location()).
			Int("errors", len(errs)).
			Msg("definition rejected")
		return schema.FormDefinition{}, errs, fmt.Errorf("%w: %s", ErrInvalidDefinition, doc.Location())
	}
	def, err := doc.Definition()
	if err != nil {
		return schema.FormDefinition{}, nil, err
	}
	if e.sanitize {
		def = schema.Sanitize(def)
	}
	return def, nil, nil
}

// ResolveVisibility maps every field id to its visibility for answers.
func (e *Engine) ResolveVisibility(def schema.FormDefinition, answers schema.AnswerMap) map[string]bool {
	visible, _ := e.resolve(def, answers)
	return visible
}

func (e *Engine) resolve(def schema.FormDefinition, answers schema.AnswerMap) (map[string]bool, schema.AnswerMap) {
	if !e.prune {
		return e.resolver.Resolve(def, answers), answers
	}
	order, err := e.Order(def)
	if err != nil {
		e.logger.Warn().Err(err).Msg("dependency order unavailable, resolving in declaration order")
		return e.resolver.ResolvePruned(def, answers)
	}
	resolver := visibility.NewResolver(visibility.WithEvaluator(e.evaluator), visibility.WithOrder(order))
	return resolver.ResolvePruned(def, answers)
}

// ValidateField runs a field's rules and type checks against value.
func (e *Engine) ValidateField(field schema.Field, value any, answers schema.AnswerMap) []schema.ValidationError {
	return e.rules.ValidateField(field, value, answers)
}

// Order returns field ids so that each field follows the fields its
// branching and rule conditions read.
func (e *Engine) Order(def schema.FormDefinition) ([]string, error) {
	return graph.TopologicalOrder(graph.Build(def), graph.WithMaxDepth(e.maxDepth))
}

// Result is the outcome of validating a whole submission.
type Result struct {
	Visible map[string]bool          `json:"visible"`
	Errors  []schema.ValidationError `json:"errors,omitempty"`
}

// Valid reports whether the submission produced no errors.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateSubmission resolves visibility and validates every visible field.
// Submitted keys that are not fields, or that carry a value for a hidden
// field, are reported as invalid_field ahead of the rule errors.
func (e *Engine) ValidateSubmission(def schema.FormDefinition, answers schema.AnswerMap) Result {
	visible, scope := e.resolve(def, answers)
	index := def.FieldIndex()

	var errs []schema.ValidationError
	keys := make([]string, 0, len(answers))
	for key := range answers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := index[key]; !ok {
			errs = append(errs, schema.ValidationError{
				Path:    schema.FieldPath(key),
				Code:    schema.CodeInvalidField,
				Message: fmt.Sprintf("%q is not a field of this form", key),
			})
			continue
		}
		if !visible[key] && !rules.IsEmpty(answers[key]) {
			errs = append(errs, schema.ValidationError{
				Path:    schema.FieldPath(key),
				Code:    schema.CodeInvalidField,
				Message: fmt.Sprintf("%q is hidden and must not be answered", key),
			})
		}
	}

	seen := make(map[string]bool, len(index))
	for _, field := range def.Fields() {
		if seen[field.ID] {
			continue
		}
		seen[field.ID] = true
		if !visible[field.ID] {
			continue
		}
		value, _ := scope.Lookup(field.ID)
		errs = append(errs, e.rules.ValidateField(field, value, scope)...)
	}

	e.logger.Debug().
		Int("answers", len(answers)).
		Int("errors", len(errs)).
		Msg("submission validated")
	return Result{Visible: visible, Errors: errs}
}
