// Package cohesion computes intra-class cohesion: the partition of each
// class's effective members into communication clusters (LCOM), unused
// members, and CK-style class metrics derived from the communication graph.
package cohesion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/flatten"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/symbols"
)

// ErrNoMemberEdges is returned when the graph was built without member-level
// edges, which cohesion needs.
var ErrNoMemberEdges = errors.New("cohesion: graph has no member-level edges")

// Analyzer computes cohesion metrics over a frozen communication graph.
type Analyzer struct {
	workers          int
	includeInherited bool
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithWorkers sets the number of classes analyzed concurrently.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithIncludeInherited controls whether members inherited from a parent
// class take part in the partition. Trait members always do.
func WithIncludeInherited(include bool) Option {
	return func(a *Analyzer) {
		a.includeInherited = include
	}
}

// New creates a new cohesion analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{includeInherited: true}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// classDeps aggregates the cross-class usage of one class.
type classDeps struct {
	coupled map[string]bool
	called  map[string]bool
}

// index holds read-only lookups shared by all workers.
type index struct {
	graph   *commgraph.Graph
	ids     map[string]uint32
	touched *roaring.Bitmap
	deps    map[string]*classDeps
}

// Analyze partitions every concrete or abstract class into clusters.
// Interfaces and traits are skipped: an interface has no bodies and a
// trait's members are analyzed inside each class that uses it.
func (a *Analyzer) Analyze(ctx context.Context, g *commgraph.Graph, flat *flatten.Result) (*Analysis, error) {
	if !g.Granularity().Members() {
		return nil, ErrNoMemberEdges
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := buildIndex(g)

	var classes []*flatten.Class
	for _, c := range flat.Classes() {
		if c.Decl.Kind == ir.DeclClass {
			classes = append(classes, c)
		}
	}

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.StartPhase(analyzer.PhaseCohesion, len(classes))
	}

	metrics := analyzer.Map(classes, a.workers, func(_ int, c *flatten.Class) ClassMetrics {
		m := a.analyzeClass(c, idx)
		if tracker != nil {
			tracker.Tick(c.FQN())
		}
		return m
	})

	analysis := &Analysis{
		GeneratedAt: time.Now().UTC(),
		Classes:     metrics,
	}
	if analysis.Classes == nil {
		analysis.Classes = make([]ClassMetrics, 0)
	}
	analysis.SortByName()
	analysis.SortByLCOM()
	analysis.CalculateSummary()

	return analysis, nil
}

// buildIndex numbers the graph's nodes, marks every node touched by a
// member-level edge and aggregates per-class dependencies.
func buildIndex(g *commgraph.Graph) *index {
	nodes := g.Nodes()
	idx := &index{
		graph:   g,
		ids:     make(map[string]uint32, len(nodes)),
		touched: roaring.New(),
		deps:    make(map[string]*classDeps),
	}
	for i, n := range nodes {
		idx.ids[n.ID] = uint32(i)
	}

	for _, e := range g.MemberEdges() {
		idx.touched.Add(idx.ids[e.From])
		idx.touched.Add(idx.ids[e.To])

		if e.Inherited {
			continue
		}
		owner := g.Owner(e.From)
		if owner == "" {
			continue
		}
		target := g.Owner(e.To)
		if target == "" || target == owner {
			continue
		}
		d := idx.deps[owner]
		if d == nil {
			d = &classDeps{coupled: make(map[string]bool), called: make(map[string]bool)}
			idx.deps[owner] = d
		}
		d.coupled[target] = true
		if e.Kind == resolve.KindCall || e.Kind == resolve.KindStaticCall {
			if n, ok := g.Node(e.To); ok && (n.Kind == commgraph.NodeMethod || n.Kind == commgraph.NodeFunction) {
				d.called[e.To] = true
			}
		}
	}
	return idx
}

func (a *Analyzer) analyzeClass(c *flatten.Class, idx *index) ClassMetrics {
	d := c.Decl
	m := ClassMetrics{
		Class:     d.FQN,
		Namespace: d.Namespace,
		Path:      d.Location.Path,
		Line:      d.Location.Line,
		DIT:       c.DIT,
		NOC:       c.NOC,
		Excluded:  c.Excluded,
		Clusters:  make([]Cluster, 0),
	}

	var members []*symbols.Member
	for _, mem := range c.Members {
		if mem.Inherited && !a.includeInherited {
			continue
		}
		members = append(members, mem)
	}

	pos := make(map[string]int, len(members))
	for i, mem := range members {
		pos[mem.ID()] = i
		switch mem.Kind {
		case symbols.MemberMethod:
			m.NOM++
		case symbols.MemberProperty:
			m.NOF++
		default:
			m.NOK++
		}
	}

	uf := newUnionFind(len(members))
	users := make(map[int]map[int]bool)
	for _, e := range idx.graph.IntraClassEdges(d.FQN) {
		from, ok := pos[e.From]
		if !ok {
			continue
		}
		to, ok := pos[e.To]
		if !ok {
			continue
		}
		uf.union(from, to)

		if members[from].Kind == symbols.MemberMethod && members[to].Kind == symbols.MemberProperty {
			if users[to] == nil {
				users[to] = make(map[int]bool)
			}
			users[to][from] = true
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := range members {
		r := uf.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	for _, r := range roots {
		cl := Cluster{Members: make([]string, len(groups[r]))}
		for j, i := range groups[r] {
			cl.Members[j] = members[i].Label()
		}
		if len(groups[r]) == 1 {
			mem := members[groups[r][0]]
			if !idx.touched.Contains(idx.ids[mem.ID()]) {
				cl.Unused = true
				m.Unused = append(m.Unused, mem.Label())
			}
		}
		m.Clusters = append(m.Clusters, cl)
	}
	m.LCOM = len(m.Clusters)
	m.Fingerprint = Fingerprint(m.Clusters)

	m.LCOMHS = -1
	if m.NOF*m.NOM != 0 {
		var used int
		for _, u := range users {
			used += len(u)
		}
		m.LCOMHS = 1 - float64(used)/float64(m.NOF*m.NOM)
	}

	m.RFC = m.NOM
	if deps := idx.deps[d.FQN]; deps != nil {
		m.CBO = len(deps.coupled)
		m.RFC += len(deps.called)
		for fqn := range deps.coupled {
			m.CoupledClasses = append(m.CoupledClasses, fqn)
		}
		sort.Strings(m.CoupledClasses)
	}
	return m
}

// Fingerprint hashes a partition independent of cluster and member order.
// Two classes with the same fingerprint have identical clusters.
func Fingerprint(clusters []Cluster) string {
	parts := make([]string, len(clusters))
	for i, c := range clusters {
		names := append([]string(nil), c.Members...)
		sort.Strings(names)
		parts[i] = strings.Join(names, ",")
	}
	sort.Strings(parts)
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(parts, "\n")))
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
