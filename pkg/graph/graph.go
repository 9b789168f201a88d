// Package graph derives the field dependency graph of a form definition and
// analyses it for cycles and evaluation order.
package graph

import (
	"sort"

	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/schema"
)

// Graph maps each field to the fields its expressions reference. Nodes keep
// declaration order so traversals and reports are deterministic.
type Graph struct {
	nodes []string
	edges map[string][]string
}

// Build extracts dependencies from every field's showIf, hideIf and rule
// conditions. A field referencing itself from a rule condition is not a
// dependency; a self reference from branching is.
func Build(def schema.FormDefinition) Graph {
	g := Graph{edges: make(map[string][]string)}
	for _, field := range def.Fields() {
		if _, exists := g.edges[field.ID]; exists {
			continue
		}
		deps := make(map[string]struct{})
		for _, ref := range expr.ExtractFieldReferences(field.ShowIf()) {
			deps[ref] = struct{}{}
		}
		for _, ref := range expr.ExtractFieldReferences(field.HideIf()) {
			deps[ref] = struct{}{}
		}
		for _, rule := range field.Validation {
			for _, ref := range expr.ExtractFieldReferences(rule.Condition) {
				if ref == field.ID {
					continue
				}
				deps[ref] = struct{}{}
			}
		}
		g.nodes = append(g.nodes, field.ID)
		g.edges[field.ID] = sortedKeys(deps)
	}
	return g
}

// FromMap builds a Graph from an adjacency map. Nodes are ordered by the
// supplied order first, then any remaining keys alphabetically.
func FromMap(adjacency map[string][]string, order ...string) Graph {
	g := Graph{edges: make(map[string][]string, len(adjacency))}
	seen := make(map[string]struct{}, len(adjacency))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		g.nodes = append(g.nodes, id)
		deps := make(map[string]struct{}, len(adjacency[id]))
		for _, dep := range adjacency[id] {
			deps[dep] = struct{}{}
		}
		g.edges[id] = sortedKeys(deps)
	}
	for _, id := range order {
		if _, ok := adjacency[id]; ok {
			add(id)
		}
	}
	rest := make([]string, 0, len(adjacency))
	for id := range adjacency {
		rest = append(rest, id)
	}
	sort.Strings(rest)
	for _, id := range rest {
		add(id)
	}
	return g
}

// Nodes returns the field ids in declaration order.
func (g Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Has reports whether id is a node of the graph.
func (g Graph) Has(id string) bool {
	_, ok := g.edges[id]
	return ok
}

// Dependencies returns the sorted set of ids that id depends on. References
// to unknown ids are kept; Missing lists them.
func (g Graph) Dependencies(id string) []string {
	return append([]string(nil), g.edges[id]...)
}

// Map returns a copy of the adjacency map.
func (g Graph) Map() map[string][]string {
	out := make(map[string][]string, len(g.edges))
	for id, deps := range g.edges {
		out[id] = append(make([]string, 0, len(deps)), deps...)
	}
	return out
}

// Dependents returns the ids that depend directly on id, in declaration order.
func (g Graph) Dependents(id string) []string {
	var out []string
	for _, node := range g.nodes {
		for _, dep := range g.edges[node] {
			if dep == id {
				out = append(out, node)
				break
			}
		}
	}
	return out
}

// Missing maps each node to the referenced ids that are not nodes.
func (g Graph) Missing() map[string][]string {
	out := make(map[string][]string)
	for _, node := range g.nodes {
		for _, dep := range g.edges[node] {
			if !g.Has(dep) {
				out[node] = append(out[node], dep)
			}
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
