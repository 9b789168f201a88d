// Package engine wires the expression evaluator, visibility resolver, rules
// validator and definition validator behind one entry point. Defaults are
// applied for every collaborator so callers can start with New() and inject
// their own pieces through options.
package engine
