package visibility

import (
	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/schema"
)

// Resolver computes per-field visibility. It reads only the supplied answers,
// never other fields' computed visibility.
type Resolver struct {
	evaluator Evaluator
	order     []string
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithEvaluator swaps the expression evaluator.
func WithEvaluator(evaluator Evaluator) Option {
	return func(r *Resolver) {
		if evaluator != nil {
			r.evaluator = evaluator
		}
	}
}

// WithOrder sets the order fields are evaluated in, typically the
// topological order from the graph package. Fields missing from order are
// evaluated afterwards in declaration order.
func WithOrder(order []string) Option {
	return func(r *Resolver) {
		r.order = append([]string(nil), order...)
	}
}

// NewResolver constructs a Resolver backed by expr.New() unless overridden.
func NewResolver(options ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.evaluator == nil {
		r.evaluator = expr.New()
	}
	return r
}

// Visible reports whether field is shown for answers. Without branching a
// field is always visible; showIf sets visibility to its own result; a true
// hideIf hides the field regardless of showIf.
func (r *Resolver) Visible(field schema.Field, answers schema.AnswerMap) bool {
	visible := true
	if showIf := field.ShowIf(); showIf != "" {
		visible = r.evaluator.Evaluate(showIf, answers)
	}
	if hideIf := field.HideIf(); hideIf != "" && r.evaluator.Evaluate(hideIf, answers) {
		visible = false
	}
	return visible
}

// Resolve evaluates every field of def once and returns visibility by id.
func (r *Resolver) Resolve(def schema.FormDefinition, answers schema.AnswerMap) map[string]bool {
	index := def.FieldIndex()
	out := make(map[string]bool, len(index))
	for _, id := range r.sequence(def) {
		field, ok := index[id]
		if !ok {
			continue
		}
		if _, done := out[id]; done {
			continue
		}
		out[id] = r.Visible(field, answers)
	}
	return out
}

// ResolvePruned walks fields in the resolver order and removes the answer of
// every hidden field before later fields are evaluated, so a field hidden
// upstream also hides answers its dependents would read. It returns the
// visibility map and the pruned copy of answers; answers itself is untouched.
// Use it with WithOrder set to a topological order.
func (r *Resolver) ResolvePruned(def schema.FormDefinition, answers schema.AnswerMap) (map[string]bool, schema.AnswerMap) {
	working := make(schema.AnswerMap, len(answers))
	for key, value := range answers {
		working[key] = value
	}

	index := def.FieldIndex()
	out := make(map[string]bool, len(index))
	for _, id := range r.sequence(def) {
		field, ok := index[id]
		if !ok {
			continue
		}
		if _, done := out[id]; done {
			continue
		}
		visible := r.Visible(field, working)
		out[id] = visible
		if !visible {
			delete(working, id)
		}
	}
	return out, working
}

// VisibleIDs returns the ids of visible fields in declaration order.
func VisibleIDs(def schema.FormDefinition, visibility map[string]bool) []string {
	var out []string
	for _, id := range def.FieldIDs() {
		if visibility[id] {
			out = append(out, id)
		}
	}
	return out
}

func (r *Resolver) sequence(def schema.FormDefinition) []string {
	declared := def.FieldIDs()
	if len(r.order) == 0 {
		return declared
	}
	return append(append([]string(nil), r.order...), declared...)
}

// ResolveVisibility is Resolve with a default resolver.
func ResolveVisibility(def schema.FormDefinition, answers schema.AnswerMap) map[string]bool {
	return NewResolver().Resolve(def, answers)
}
