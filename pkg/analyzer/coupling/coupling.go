// Package coupling measures inter-class and inter-namespace coupling on the
// communication graph: directed pair aggregation, degree metrics,
// instability, and dependency cycles.
package coupling

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/symbols"
)

// ErrNoClassEdges is returned when the graph was built without class-level
// edges, which coupling needs.
var ErrNoClassEdges = errors.New("coupling: graph has no class-level edges")

// Default limits for cycle enumeration.
const (
	DefaultMaxCycleSCC = 64
	DefaultMaxCycles   = 500
)

// Analyzer computes coupling metrics.
type Analyzer struct {
	maxSCC    int
	maxCycles int
	unstable  float64
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMaxCycleSCC sets the largest strongly connected component whose
// elementary cycles are enumerated. Larger components are reported as SCCs
// only.
func WithMaxCycleSCC(n int) Option {
	return func(a *Analyzer) {
		a.maxSCC = n
	}
}

// WithMaxCycles caps the number of cycles reported per level.
func WithMaxCycles(n int) Option {
	return func(a *Analyzer) {
		a.maxCycles = n
	}
}

// WithInstabilityThreshold sets the instability at which a class counts as
// unstable in the summary.
func WithInstabilityThreshold(v float64) Option {
	return func(a *Analyzer) {
		a.unstable = v
	}
}

// New creates a new coupling analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		maxSCC:    DefaultMaxCycleSCC,
		maxCycles: DefaultMaxCycles,
		unstable:  0.8,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze aggregates the class and namespace levels of g. It runs on one
// goroutine; Tarjan's algorithm is inherently sequential. Cycle enumeration
// honours ctx.
func (a *Analyzer) Analyze(ctx context.Context, g *commgraph.Graph, table *symbols.Table) (*Analysis, error) {
	if !g.Granularity().Classes() {
		return nil, ErrNoClassEdges
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.StartPhase(analyzer.PhaseCoupling, 2)
	}

	var classIDs, nsIDs []string
	for _, n := range g.Nodes() {
		switch n.Kind {
		case commgraph.NodeClass, commgraph.NodeInterface, commgraph.NodeTrait, commgraph.NodeFunction:
			classIDs = append(classIDs, n.ID)
		case commgraph.NodeNamespace:
			nsIDs = append(nsIDs, n.ID)
		}
	}

	res := &Analysis{}
	var err error
	if res.Classes, err = a.level(ctx, g, classIDs, g.ClassEdges()); err != nil {
		return nil, err
	}
	if tracker != nil {
		tracker.Tick("classes")
	}
	if res.Namespaces, err = a.level(ctx, g, nsIDs, g.NamespaceEdges()); err != nil {
		return nil, err
	}
	if tracker != nil {
		tracker.Tick("namespaces")
	}
	res.Packages = packages(g, res.Namespaces.Nodes, table)
	res.summarize(a.unstable)

	return res, nil
}

func (a *Analyzer) level(ctx context.Context, g *commgraph.Graph, ids []string, edges []commgraph.Edge) (Level, error) {
	pairs := aggregate(edges)

	l := Level{
		Pairs: pairs,
		Nodes: degrees(g, ids, pairs),
	}
	l.SCCs = stronglyConnected(ids, pairs)
	var err error
	l.Cycles, l.Truncated, err = elementaryCycles(ctx, l.SCCs, pairs, a.maxSCC, a.maxCycles)
	return l, err
}

// aggregate groups cross-boundary edges by endpoint pair. Self-loops and
// edges to the unknown sentinel are not coupling.
func aggregate(edges []commgraph.Edge) []Pair {
	type key struct{ from, to string }
	index := make(map[key]int)
	var pairs []Pair
	for _, e := range edges {
		if e.SelfLoop() || e.To == commgraph.UnknownID || e.From == commgraph.UnknownID {
			continue
		}
		k := key{e.From, e.To}
		i, ok := index[k]
		if !ok {
			i = len(pairs)
			index[k] = i
			pairs = append(pairs, Pair{From: e.From, To: e.To, Kinds: make(map[resolve.Kind]int)})
		}
		pairs[i].Count++
		pairs[i].Kinds[e.Kind]++
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].From != pairs[j].From {
			return pairs[i].From < pairs[j].From
		}
		return pairs[i].To < pairs[j].To
	})
	if pairs == nil {
		pairs = make([]Pair, 0)
	}
	return pairs
}

func degrees(g *commgraph.Graph, ids []string, pairs []Pair) []NodeMetrics {
	pos := make(map[string]int, len(ids))
	nodes := make([]NodeMetrics, len(ids))
	for i, id := range ids {
		pos[id] = i
		nodes[i] = NodeMetrics{ID: id}
		if n, ok := g.Node(id); ok {
			nodes[i].Kind = n.Kind
			nodes[i].Namespace = n.Namespace
		}
	}

	for _, p := range pairs {
		if i, ok := pos[p.From]; ok {
			nodes[i].OutDegree += p.Count
			nodes[i].Efferent++
		}
		if i, ok := pos[p.To]; ok {
			nodes[i].InDegree += p.Count
			nodes[i].Afferent++
		}
	}
	for i := range nodes {
		nodes[i].Instability = instability(nodes[i].Afferent, nodes[i].Efferent)
	}
	return nodes
}

func instability(ca, ce int) float64 {
	if ca+ce == 0 {
		return 0
	}
	return float64(ce) / float64(ca+ce)
}

// packages computes abstractness and distance from the main sequence for
// every namespace.
func packages(g *commgraph.Graph, nodes []NodeMetrics, table *symbols.Table) []NamespaceMetrics {
	types := make(map[string]int)
	abstract := make(map[string]int)
	for _, d := range table.ClassLikes() {
		types[d.Namespace]++
		if d.Kind == ir.DeclInterface || (d.Kind == ir.DeclClass && d.Abstract) {
			abstract[d.Namespace]++
		}
	}

	out := make([]NamespaceMetrics, 0, len(nodes))
	for _, n := range nodes {
		name := ""
		if node, ok := g.Node(n.ID); ok {
			name = node.Name
		}
		m := NamespaceMetrics{
			NodeMetrics:  n,
			Name:         name,
			Types:        types[name],
			AbstractType: abstract[name],
		}
		if m.Types > 0 {
			m.Abstractness = float64(m.AbstractType) / float64(m.Types)
		}
		m.Distance = math.Abs(m.Abstractness + m.Instability - 1)
		out = append(out, m)
	}
	return out
}

func (a *Analysis) summarize(unstable float64) {
	s := Summary{
		ClassPairs:      len(a.Classes.Pairs),
		NamespacePairs:  len(a.Namespaces.Pairs),
		ClassCycles:     len(a.Classes.Cycles),
		NamespaceCycles: len(a.Namespaces.Cycles),
		IsCyclic:        len(a.Classes.SCCs) > 0 || len(a.Namespaces.SCCs) > 0,
	}

	var total float64
	for _, n := range a.Classes.Nodes {
		total += n.Instability
		if n.Efferent > s.MaxEfferent {
			s.MaxEfferent = n.Efferent
		}
		if n.Afferent > s.MaxAfferent {
			s.MaxAfferent = n.Afferent
		}
		if n.Efferent > 0 && n.Instability >= unstable {
			s.UnstableClassesCount++
		}
	}
	if len(a.Classes.Nodes) > 0 {
		s.AvgInstability = total / float64(len(a.Classes.Nodes))
	}

	var dist float64
	for _, p := range a.Packages {
		dist += p.Distance
	}
	if len(a.Packages) > 0 {
		s.AvgDistance = dist / float64(len(a.Packages))
	}
	a.Summary = s
}
