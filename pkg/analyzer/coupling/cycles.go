package coupling

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// gonumGraph holds the gonum representation and mappings.
type gonumGraph struct {
	directed   *simple.DirectedGraph
	nodeIDToID map[string]int64
	idToNodeID map[int64]string
}

// toGonumGraph converts node IDs and pairs to a gonum directed graph.
// Pairs whose endpoints are not in ids are dropped.
func toGonumGraph(ids []string, pairs []Pair) *gonumGraph {
	g := &gonumGraph{
		directed:   simple.NewDirectedGraph(),
		nodeIDToID: make(map[string]int64, len(ids)),
		idToNodeID: make(map[int64]string, len(ids)),
	}
	for i, id := range ids {
		gid := int64(i)
		g.nodeIDToID[id] = gid
		g.idToNodeID[gid] = id
		g.directed.AddNode(simple.Node(gid))
	}
	for _, p := range pairs {
		from, fromOK := g.nodeIDToID[p.From]
		to, toOK := g.nodeIDToID[p.To]
		if fromOK && toOK && from != to {
			g.directed.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	return g
}

func (g *gonumGraph) names(nodes []graph.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = g.idToNodeID[n.ID()]
	}
	return out
}

// stronglyConnected returns every strongly connected component with more
// than one node, each sorted, ordered by first member.
func stronglyConnected(ids []string, pairs []Pair) [][]string {
	if len(ids) == 0 {
		return nil
	}
	g := toGonumGraph(ids, pairs)

	var sccs [][]string
	for _, scc := range topo.TarjanSCC(g.directed) {
		if len(scc) < 2 {
			continue
		}
		names := g.names(scc)
		sort.Strings(names)
		sccs = append(sccs, names)
	}
	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })
	return sccs
}

// maxCycleSteps bounds the path extensions tried per level. Sparse
// components can hold exponentially many simple paths but few cycles.
const maxCycleSteps = 1 << 20

// elementaryCycles enumerates the cycles inside each SCC, shortest first.
// Components larger than maxSCC are skipped. The search stops at the first
// cycle beyond maxCycles or when the step budget runs out; each sets
// truncated. ctx is checked while searching.
func elementaryCycles(ctx context.Context, sccs [][]string, pairs []Pair, maxSCC, maxCycles int) ([]Cycle, bool, error) {
	s := &cycleSearch{ctx: ctx, maxCycles: maxCycles}

	var comps []*component
	longest := 0
	for _, scc := range sccs {
		if maxSCC > 0 && len(scc) > maxSCC {
			s.truncated = true
			continue
		}
		comps = append(comps, newComponent(scc, pairs))
		longest = max(longest, len(scc))
	}

	// Iterative deepening keeps the reported cycles the shortest ones when
	// the cap cuts the search short.
	for limit := 2; limit <= longest && !s.stopped; limit++ {
		for _, c := range comps {
			if len(c.succ) < limit || s.stopped {
				continue
			}
			s.search(c, limit)
		}
	}
	if s.err != nil {
		return nil, false, s.err
	}

	sort.Slice(s.cycles, func(i, j int) bool {
		a, b := s.cycles[i].Nodes, s.cycles[j].Nodes
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return s.cycles, s.truncated, nil
}

// component is one SCC with sorted successor lists. Node IDs follow the
// sorted member order, so the smallest ID is the smallest name.
type component struct {
	g    *gonumGraph
	succ [][]int64
}

func newComponent(scc []string, pairs []Pair) *component {
	g := toGonumGraph(scc, pairs)
	succ := make([][]int64, len(scc))
	for id := range succ {
		for _, n := range graph.NodesOf(g.directed.From(int64(id))) {
			succ[id] = append(succ[id], n.ID())
		}
		sort.Slice(succ[id], func(i, j int) bool { return succ[id][i] < succ[id][j] })
	}
	return &component{g: g, succ: succ}
}

type cycleSearch struct {
	ctx       context.Context
	maxCycles int
	steps     int
	cycles    []Cycle
	truncated bool
	stopped   bool
	err       error

	c      *component
	start  int64
	limit  int
	path   []int64
	onPath []bool
}

// search collects the cycles of exactly limit nodes in c. Each cycle is
// found once, from its smallest node.
func (s *cycleSearch) search(c *component, limit int) {
	s.c, s.limit = c, limit
	s.onPath = make([]bool, len(c.succ))
	for start := range c.succ {
		if s.stopped {
			return
		}
		s.start = int64(start)
		s.path = append(s.path[:0], s.start)
		s.extend(s.start)
	}
}

func (s *cycleSearch) extend(v int64) {
	depth := len(s.path)
	for _, w := range s.c.succ[v] {
		if s.stopped {
			return
		}
		s.steps++
		if s.steps > maxCycleSteps {
			s.truncated, s.stopped = true, true
			return
		}
		if s.steps%4096 == 0 {
			if err := s.ctx.Err(); err != nil {
				s.err, s.stopped = err, true
				return
			}
		}

		if w == s.start {
			if depth == s.limit {
				s.emit()
			}
			continue
		}
		if w < s.start || s.onPath[w] || depth == s.limit {
			continue
		}
		s.onPath[w] = true
		s.path = append(s.path, w)
		s.extend(w)
		s.path = s.path[:len(s.path)-1]
		s.onPath[w] = false
	}
}

func (s *cycleSearch) emit() {
	if s.maxCycles > 0 && len(s.cycles) >= s.maxCycles {
		s.truncated, s.stopped = true, true
		return
	}
	nodes := make([]string, len(s.path))
	for i, id := range s.path {
		nodes[i] = s.c.g.idToNodeID[id]
	}
	s.cycles = append(s.cycles, Cycle{Nodes: rotate(nodes)})
}

// rotate returns the cycle starting at its smallest node.
func rotate(nodes []string) []string {
	if len(nodes) == 0 {
		return nodes
	}
	start := 0
	for i, n := range nodes {
		if n < nodes[start] {
			start = i
		}
	}
	out := make([]string, 0, len(nodes))
	out = append(out, nodes[start:]...)
	return append(out, nodes[:start]...)
}
