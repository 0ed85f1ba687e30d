// Package analysis inspects an assembled rule system without running it.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/pachinko/internal/engine"
)

// CycleWarning describes rules that can keep re-triggering each other.
//
// Cycles are warnings, not errors. A rule that re-triggers itself until its
// condition turns false is a legitimate way to iterate; the engine simply
// does not guarantee that such a drain ends.
type CycleWarning struct {
	Path    []string `json:"path"`
	Via     []string `json:"via"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// graph maps rule name to the rules its writes can enqueue, and each edge to
// the variables that carry it.
type graph struct {
	order []string
	edges map[string][]string
	via   map[[2]string][]string
}

// AnalyzeCycles builds the trigger graph of an assembled system and reports
// every strongly connected component that is a self-loop or has more than
// one member.
//
// An edge A -> B exists when rule A reports writing a variable (through
// engine.Writer) that rule B declared as required or key. Rules that do not
// implement engine.Writer contribute no outgoing edges.
func AnalyzeCycles(s *engine.System) []CycleWarning {
	g := buildGraph(s.Records())

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || g.hasSelfLoop(scc[0]) {
			warnings = append(warnings, g.warning(scc))
		}
	}

	sort.Slice(warnings, func(i, j int) bool {
		return strings.Join(warnings[i].Path, ",") < strings.Join(warnings[j].Path, ",")
	})
	return warnings
}

func buildGraph(recs []*engine.Activation) *graph {
	g := &graph{
		edges: make(map[string][]string),
		via:   make(map[[2]string][]string),
	}

	triggered := make(map[string][]string)
	for _, rec := range recs {
		g.order = append(g.order, rec.Name())
		for _, name := range rec.Triggers() {
			triggered[name] = append(triggered[name], rec.Name())
		}
	}

	for _, rec := range recs {
		from := rec.Name()
		for _, name := range rec.Writes() {
			for _, to := range triggered[name] {
				key := [2]string{from, to}
				if _, seen := g.via[key]; !seen {
					g.edges[from] = append(g.edges[from], to)
				}
				g.via[key] = append(g.via[key], name)
			}
		}
	}
	return g
}

func (g *graph) hasSelfLoop(node string) bool {
	_, ok := g.via[[2]string{node, node}]
	return ok
}

// tarjanSCC finds strongly connected components, visiting nodes in rule
// order so the output is deterministic.
func tarjanSCC(g *graph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func (g *graph) warning(scc []string) CycleWarning {
	path := []string{scc[0], scc[0]}
	msg := fmt.Sprintf("rule %s re-triggers itself", scc[0])
	if len(scc) > 1 {
		path = g.cyclePath(scc)
		msg = fmt.Sprintf("rules may re-trigger each other: %s", strings.Join(path, " -> "))
	}

	seen := make(map[string]bool)
	var via []string
	for i := 0; i+1 < len(path); i++ {
		for _, name := range g.via[[2]string{path[i], path[i+1]}] {
			if !seen[name] {
				seen[name] = true
				via = append(via, name)
			}
		}
	}

	return CycleWarning{Path: path, Via: via, Message: msg, Level: "warning"}
}

// cyclePath walks edges inside the SCC from its earliest rule until it
// returns to the start.
func (g *graph) cyclePath(scc []string) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	for _, n := range g.order {
		if members[n] {
			start = n
			break
		}
	}

	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		next := ""
		for _, w := range g.edges[current] {
			if members[w] && (w == start || !visited[w]) {
				next = w
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		visited[next] = true
		current = next
	}
	return path
}
