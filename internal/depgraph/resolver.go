// Package depgraph implements the dependency resolver (spec.md §4.3):
// requires validation, transitive closure under selection, cycle detection,
// and topological scheduling.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/restyrun/resty/internal/block"
	"github.com/restyrun/resty/internal/rerr"
)

// Node pairs a test name with its resolved requires list (Config-level
// `dependencies:` already merged in — see MergeConfigDependencies).
type Node struct {
	Name     string
	Test     *block.Test
	Requires []string
}

// MergeConfigDependencies materialises every Config block's `dependencies:`
// list as an implicit `requires` prefix added to every test in the same
// block set, per spec.md §4.3 and the conservative reading of the open
// question in spec.md §9.
func MergeConfigDependencies(blocks []*block.Block) []Node {
	var configDeps []string
	for _, b := range blocks {
		if b.Kind == block.KindConfig {
			configDeps = append(configDeps, b.Config.Dependencies...)
		}
	}

	var nodes []Node
	for _, b := range blocks {
		if b.Kind != block.KindTest {
			continue
		}
		requires := make([]string, 0, len(configDeps)+len(b.Test.Requires))
		requires = append(requires, configDeps...)
		requires = append(requires, b.Test.Requires...)
		nodes = append(nodes, Node{Name: b.Test.Name, Test: b.Test, Requires: requires})
	}
	return nodes
}

// Resolver validates and orders a fixed set of Nodes.
type Resolver struct {
	byName map[string]Node
	order  []string // original document order, for stable output
}

func NewResolver(nodes []Node) (*Resolver, error) {
	r := &Resolver{byName: make(map[string]Node, len(nodes))}
	for _, n := range nodes {
		r.byName[n.Name] = n
		r.order = append(r.order, n.Name)
	}
	for _, n := range nodes {
		for _, dep := range n.Requires {
			if _, ok := r.byName[dep]; !ok {
				return nil, rerr.New(rerr.KindMissingDependency,
					fmt.Sprintf("test %q requires %q, which does not exist", n.Name, dep))
			}
		}
	}
	return r, nil
}

// Resolve computes the ordering for a selection (nil/empty means "every
// test"): the transitive closure of selected names, cycle-checked, then
// topologically sorted with ties broken by original document order.
func (r *Resolver) Resolve(selection []string) ([]string, error) {
	var roots []string
	if len(selection) == 0 {
		roots = r.order
	} else {
		roots = selection
		for _, name := range selection {
			if _, ok := r.byName[name]; !ok {
				return nil, rerr.New(rerr.KindMissingDependency,
					fmt.Sprintf("selected test %q does not exist", name))
			}
		}
	}

	closure, err := r.closure(roots)
	if err != nil {
		return nil, err
	}
	if err := r.checkCycles(closure); err != nil {
		return nil, err
	}
	return r.topoSort(closure), nil
}

// closure computes every name reachable from roots via requires edges,
// including the roots themselves.
func (r *Resolver) closure(roots []string) (map[string]bool, error) {
	visited := map[string]bool{}
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range r.byName[name].Requires {
			visit(dep)
		}
	}
	for _, name := range roots {
		visit(name)
	}
	return visited, nil
}

// color marks DFS visitation state for cycle detection.
type color int

const (
	white color = iota
	grey
	black
)

// checkCycles runs a grey/black DFS over the closure, restricted to the
// given node set. On encountering a grey vertex it reports CircularDependency
// with the cycle path in loop order.
func (r *Resolver) checkCycles(closure map[string]bool) error {
	colors := map[string]color{}
	var path []string
	var visit func(name string) error
	visit = func(name string) error {
		colors[name] = grey
		path = append(path, name)
		for _, dep := range r.byName[name].Requires {
			if !closure[dep] {
				continue
			}
			switch colors[dep] {
			case grey:
				cycle := cyclePath(path, dep)
				return rerr.New(rerr.KindCircularDependency,
					fmt.Sprintf("circular dependency: %v", cycle))
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		colors[name] = black
		return nil
	}

	names := sortedKeys(closure)
	for _, name := range names {
		if colors[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// cyclePath extracts the suffix of path starting at the first occurrence of
// repeatedAt, with repeatedAt appended again to close the loop.
func cyclePath(path []string, repeatedAt string) []string {
	start := 0
	for i, n := range path {
		if n == repeatedAt {
			start = i
			break
		}
	}
	cycle := append([]string{}, path[start:]...)
	return append(cycle, repeatedAt)
}

// topoSort runs Kahn's algorithm over the closure, restricted to requires
// edges within it. Per design note, these graphs are small (one test file),
// so ready nodes are picked by a linear scan in original document order
// rather than maintaining a priority queue — simple and plenty fast.
func (r *Resolver) topoSort(closure map[string]bool) []string {
	inDegree := map[string]int{}
	for name := range closure {
		inDegree[name] = 0
	}
	for name := range closure {
		for _, dep := range r.byName[name].Requires {
			if closure[dep] {
				inDegree[name]++
			}
		}
	}

	done := map[string]bool{}
	result := make([]string, 0, len(closure))
	for len(result) < len(closure) {
		progressed := false
		for _, name := range r.order {
			if !closure[name] || done[name] || inDegree[name] != 0 {
				continue
			}
			result = append(result, name)
			done[name] = true
			progressed = true
			for other := range closure {
				if done[other] {
					continue
				}
				for _, dep := range r.byName[other].Requires {
					if dep == name {
						inDegree[other]--
					}
				}
			}
		}
		if !progressed {
			// Should be unreachable: checkCycles already rejected any cycle
			// in this closure.
			break
		}
	}
	return result
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
