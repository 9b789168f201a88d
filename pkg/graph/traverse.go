package graph

import (
	"errors"
	"fmt"
)

// DefaultMaxDepth bounds the traversal stack. Real forms stay far below it;
// hitting it means the definition is pathological.
const DefaultMaxDepth = 4096

// ErrDepthExceeded is returned when a dependency chain is deeper than the
// configured limit.
var ErrDepthExceeded = errors.New("graph: dependency chain exceeds depth limit")

// Options tunes traversals.
type Options struct {
	MaxDepth int
}

// Option mutates Options.
type Option func(*Options)

// WithMaxDepth overrides DefaultMaxDepth. Values below one are ignored.
func WithMaxDepth(depth int) Option {
	return func(o *Options) {
		if depth > 0 {
			o.MaxDepth = depth
		}
	}
}

func newOptions(options []Option) Options {
	opts := Options{MaxDepth: DefaultMaxDepth}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&opts)
	}
	return opts
}

// DetectCycles runs a depth-first traversal from every unvisited node in
// declaration order. Each edge back into the current path is reported as the
// path slice from the repeated node through the repeat, e.g. [a b a].
func DetectCycles(g Graph, options ...Option) ([][]string, error) {
	var cycles [][]string
	err := g.walk(newOptions(options), func(cycle []string) {
		cycles = append(cycles, cycle)
	}, nil)
	return cycles, err
}

// TopologicalOrder emits nodes in post-order so every field appears after all
// the fields it depends on. Edges that close a cycle are ignored, so the
// result is only a strict ordering for acyclic graphs.
func TopologicalOrder(g Graph, options ...Option) ([]string, error) {
	order := make([]string, 0, len(g.nodes))
	err := g.walk(newOptions(options), nil, func(id string) {
		order = append(order, id)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

type frame struct {
	id   string
	next int
}

// walk is an explicit-stack DFS. onCycle receives each back edge as a path;
// onDone receives nodes as they finish.
func (g Graph) walk(opts Options, onCycle func([]string), onDone func(string)) error {
	visited := make(map[string]bool, len(g.nodes))
	onPath := make(map[string]int, len(g.nodes))

	for _, root := range g.nodes {
		if visited[root] {
			continue
		}
		visited[root] = true
		path := []string{root}
		onPath[root] = 0
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.edges[top.id]
			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				if !g.Has(dep) {
					continue
				}
				if idx, ok := onPath[dep]; ok {
					if onCycle != nil {
						cycle := append(append([]string(nil), path[idx:]...), dep)
						onCycle(cycle)
					}
					continue
				}
				if visited[dep] {
					continue
				}
				if len(stack) >= opts.MaxDepth {
					return fmt.Errorf("%w (%d) at %q", ErrDepthExceeded, opts.MaxDepth, dep)
				}
				visited[dep] = true
				onPath[dep] = len(path)
				path = append(path, dep)
				stack = append(stack, frame{id: dep})
				continue
			}

			delete(onPath, top.id)
			if onDone != nil {
				onDone(top.id)
			}
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}
