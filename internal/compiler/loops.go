package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/waveguide/internal/trivial"
)

// LoopWarning describes a control-flow cycle among basic blocks.
//
// Loops are warnings, not errors: a loop with a conditional exit is the
// normal way to express iteration. A loop without any conditional jump can
// only leave through a failing assert.
type LoopWarning struct {
	Path    []string `json:"path"`    // block cycle, e.g. ["l0", "l1", "l0"]
	Message string   `json:"message"` // human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// entryBlock names the block that starts at the first instruction when no
// label is placed there.
const entryBlock = "entry"

// AnalyzeLoops finds cycles in the control-flow graph formed by labels and
// jumps. Blocks begin at the first instruction, at every label and after
// every jump. Strongly connected components are found with Tarjan's
// algorithm; every component with more than one block or a self-edge is
// reported. Results are ordered by first block position.
func AnalyzeLoops(p *trivial.Program) []LoopWarning {
	g := buildFlowGraph(p.Instructions())
	if len(g.order) == 0 {
		return []LoopWarning{}
	}

	warnings := []LoopWarning{}
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], g)) {
			warnings = append(warnings, loopToWarning(scc, g))
		}
	}
	return warnings
}

// flowGraph maps block name to successor block names.
type flowGraph struct {
	order       []string
	edges       map[string][]string
	conditional map[string]bool // block ends in a conditional jump
}

func buildFlowGraph(instrs []trivial.Instruction) *flowGraph {
	g := &flowGraph{
		edges:       make(map[string][]string),
		conditional: make(map[string]bool),
	}
	if len(instrs) == 0 {
		return g
	}

	current := ""
	open := false // current block falls through to the next one
	start := func(name string) {
		if open && current != "" {
			g.edges[current] = append(g.edges[current], name)
		}
		if _, seen := g.edges[name]; !seen {
			g.order = append(g.order, name)
			g.edges[name] = []string{}
		}
		current = name
		open = true
	}

	anon := 0
	for i, instr := range instrs {
		if l, ok := instr.(trivial.Label); ok {
			start(l.ID.String())
			continue
		}
		if !open {
			name := entryBlock
			if i > 0 {
				anon++
				name = fmt.Sprintf("b%d", anon)
			}
			start(name)
		}
		switch instr := instr.(type) {
		case trivial.Jump:
			g.edges[current] = append(g.edges[current], instr.Label.String())
			open = false
		case trivial.ConditionalJump:
			g.edges[current] = append(g.edges[current], instr.Label.String())
			g.conditional[current] = true
			// fall through into a fresh block on the false edge
			anon++
			start(fmt.Sprintf("b%d", anon))
		}
	}
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, g *flowGraph) bool {
	for _, neighbor := range g.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// block order so the output is deterministic.
func tarjanSCC(g *flowGraph) [][]string {
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
			sccs = append(sccs, orderBlocks(scc, g))
		}
	}

	for _, node := range g.order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	// components complete in reverse topological order
	for i, j := 0, len(sccs)-1; i < j; i, j = i+1, j-1 {
		sccs[i], sccs[j] = sccs[j], sccs[i]
	}
	return sccs
}

// orderBlocks sorts the members of a component by block position.
func orderBlocks(scc []string, g *flowGraph) []string {
	member := make(map[string]bool, len(scc))
	for _, n := range scc {
		member[n] = true
	}
	ordered := make([]string, 0, len(scc))
	for _, n := range g.order {
		if member[n] {
			ordered = append(ordered, n)
		}
	}
	return ordered
}

func loopToWarning(scc []string, g *flowGraph) LoopWarning {
	exits := false
	for _, n := range scc {
		if g.conditional[n] {
			exits = true
		}
	}

	var path []string
	if len(scc) == 1 {
		path = []string{scc[0], scc[0]}
	} else {
		path = reconstructCyclePath(scc, g)
	}
	pathStr := strings.Join(path, " -> ")

	if exits {
		return LoopWarning{
			Path:    path,
			Message: fmt.Sprintf("loop %s", pathStr),
			Level:   "info",
		}
	}
	return LoopWarning{
		Path:    path,
		Message: fmt.Sprintf("loop without conditional exit: %s", pathStr),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the component from its first
// block until it returns there.
func reconstructCyclePath(scc []string, g *flowGraph) []string {
	member := make(map[string]bool)
	for _, node := range scc {
		member[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range g.edges[current] {
			if member[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
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
		current = next
	}
	return path
}
