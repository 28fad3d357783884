// Package flatten computes the effective member set of every class-like
// declaration: own members, then trait members in declaration order, then
// inherited members from the parent chain.
package flatten

import (
	"context"
	"sort"
	"strings"

	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/symbols"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Class is the flattened view of one class, interface or trait.
type Class struct {
	Decl       *symbols.Declaration
	Parent     *symbols.Declaration
	Traits     []*symbols.Declaration
	Interfaces []*symbols.Declaration

	// Members is the effective member set in precedence order.
	Members []*symbols.Member

	// Excluded is set when the declaration sits on an inheritance cycle.
	// Its effective member set is empty.
	Excluded bool

	// DIT is the depth of the parent chain; NOC the number of direct subclasses.
	DIT int
	NOC int

	index map[string]*symbols.Member
}

// FQN returns the declaration's fully-qualified name.
func (c *Class) FQN() string {
	return c.Decl.FQN
}

// Member finds an effective member by kind and name.
func (c *Class) Member(kind symbols.MemberKind, name string) (*symbols.Member, bool) {
	m, ok := c.index[symbols.MemberKey(kind, name)]
	return m, ok
}

// Result holds the flattened classes and flattening diagnostics.
type Result struct {
	Conflicts []*symbols.TraitConflictError
	Cycles    []*symbols.CyclicInheritanceError

	classes map[string]*Class
	order   []*Class
}

// Class finds a flattened declaration by fully-qualified name.
func (r *Result) Class(fqn string) (*Class, bool) {
	c, ok := r.classes[strings.ToLower(strings.TrimLeft(fqn, `\`))]
	return c, ok
}

// Classes returns every flattened declaration in symbol table order.
func (r *Result) Classes() []*Class {
	return r.order
}

// Flattener computes effective member sets.
type Flattener struct {
	workers int
}

// Option is a functional option for configuring Flattener.
type Option func(*Flattener)

// WithWorkers sets the number of concurrent flattening workers.
func WithWorkers(n int) Option {
	return func(f *Flattener) {
		f.workers = n
	}
}

// New creates a new Flattener.
func New(opts ...Option) *Flattener {
	f := &Flattener{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// relations holds the resolved hierarchy edges of one declaration.
type relations struct {
	parent     *symbols.Declaration
	traits     []*symbols.Declaration
	interfaces []*symbols.Declaration
}

// Flatten computes the effective member set of every class-like declaration
// in table. The table is only read, so classes are flattened in parallel.
func (f *Flattener) Flatten(ctx context.Context, table *symbols.Table) *Result {
	decls := table.ClassLikes()
	rels := make(map[*symbols.Declaration]*relations, len(decls))
	for _, d := range decls {
		rels[d] = resolveRelations(table, d)
	}

	cycles, excluded := detectCycles(decls, rels)

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.StartPhase(analyzer.PhaseFlatten, len(decls))
	}

	type job struct {
		class     *Class
		conflicts []*symbols.TraitConflictError
	}
	jobs := analyzer.Map(decls, f.workers, func(_ int, d *symbols.Declaration) job {
		w := &walker{rels: rels, excluded: excluded, memo: make(map[*symbols.Declaration]*memberSet)}
		set := w.effective(d, true)
		rel := rels[d]
		c := &Class{
			Decl:       d,
			Parent:     rel.parent,
			Traits:     rel.traits,
			Interfaces: rel.interfaces,
			Members:    set.members,
			Excluded:   excluded[d],
			index:      set.index,
		}
		if tracker != nil {
			tracker.Tick(d.FQN)
		}
		return job{class: c, conflicts: w.conflicts}
	})

	res := &Result{
		Cycles:  cycles,
		classes: make(map[string]*Class, len(decls)),
		order:   make([]*Class, 0, len(decls)),
	}
	for _, j := range jobs {
		res.classes[strings.ToLower(j.class.FQN())] = j.class
		res.order = append(res.order, j.class)
		res.Conflicts = append(res.Conflicts, j.conflicts...)
	}
	computeHierarchyMetrics(res, excluded)

	return res
}

func resolveRelations(table *symbols.Table, d *symbols.Declaration) *relations {
	rel := &relations{}
	switch d.Kind {
	case ir.DeclClass:
		if p, ok := table.Parent(d); ok {
			rel.parent = p
		}
		for _, name := range d.Implements {
			if i, ok := table.ResolveClass(d.Scope, d, name); ok && i.Kind == ir.DeclInterface {
				rel.interfaces = append(rel.interfaces, i)
			}
		}
	case ir.DeclInterface:
		for _, name := range d.Extends {
			if i, ok := table.ResolveClass(d.Scope, d, name); ok && i.Kind == ir.DeclInterface {
				rel.interfaces = append(rel.interfaces, i)
			}
		}
	}
	if d.Kind != ir.DeclInterface {
		for _, name := range d.Traits {
			if t, ok := table.ResolveClass(d.Scope, d, name); ok && t.Kind == ir.DeclTrait {
				rel.traits = append(rel.traits, t)
			}
		}
	}
	return rel
}

// detectCycles finds cycles through parent, trait-use and interface-extends
// edges. Every declaration on a cycle is excluded from flattening.
func detectCycles(decls []*symbols.Declaration, rels map[*symbols.Declaration]*relations) ([]*symbols.CyclicInheritanceError, map[*symbols.Declaration]bool) {
	ids := make(map[*symbols.Declaration]int64, len(decls))
	g := simple.NewDirectedGraph()
	for i, d := range decls {
		ids[d] = int64(i)
		g.AddNode(simple.Node(int64(i)))
	}

	excluded := make(map[*symbols.Declaration]bool)
	var cycles []*symbols.CyclicInheritanceError

	for _, d := range decls {
		for _, to := range successors(rels[d]) {
			if to == d {
				excluded[d] = true
				cycles = append(cycles, &symbols.CyclicInheritanceError{Cycle: []string{d.FQN}})
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(ids[d]), T: simple.Node(ids[to])})
		}
	}

	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		members := make(map[*symbols.Declaration]bool, len(scc))
		for _, n := range scc {
			d := decls[n.ID()]
			members[d] = true
			excluded[d] = true
		}
		cycles = append(cycles, &symbols.CyclicInheritanceError{Cycle: orderCycle(members, rels)})
	}

	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Cycle[0] < cycles[j].Cycle[0]
	})
	return cycles, excluded
}

func successors(rel *relations) []*symbols.Declaration {
	var out []*symbols.Declaration
	if rel.parent != nil {
		out = append(out, rel.parent)
	}
	out = append(out, rel.traits...)
	return append(out, rel.interfaces...)
}

// orderCycle lists an SCC by walking edges from its smallest name.
func orderCycle(members map[*symbols.Declaration]bool, rels map[*symbols.Declaration]*relations) []string {
	var start *symbols.Declaration
	for d := range members {
		if start == nil || d.FQN < start.FQN {
			start = d
		}
	}

	seen := map[*symbols.Declaration]bool{start: true}
	cycle := []string{start.FQN}
	for cur := start; ; {
		var next *symbols.Declaration
		for _, s := range successors(rels[cur]) {
			if members[s] && !seen[s] && (next == nil || s.FQN < next.FQN) {
				next = s
			}
		}
		if next == nil {
			break
		}
		seen[next] = true
		cycle = append(cycle, next.FQN)
		cur = next
	}
	for d := range members {
		if !seen[d] {
			cycle = append(cycle, d.FQN)
		}
	}
	if len(cycle) > 1 {
		sort.Strings(cycle[len(seen):])
	}
	return cycle
}

type memberSet struct {
	members []*symbols.Member
	index   map[string]*symbols.Member
}

func (s *memberSet) add(m *symbols.Member) {
	s.members = append(s.members, m)
	s.index[m.Key()] = m
}

// walker flattens one declaration. Each worker owns its walker, so the
// memo needs no locking.
type walker struct {
	rels      map[*symbols.Declaration]*relations
	excluded  map[*symbols.Declaration]bool
	memo      map[*symbols.Declaration]*memberSet
	conflicts []*symbols.TraitConflictError
}

func (w *walker) effective(d *symbols.Declaration, top bool) *memberSet {
	if s, ok := w.memo[d]; ok {
		return s
	}
	set := &memberSet{index: make(map[string]*symbols.Member)}
	w.memo[d] = set
	if w.excluded[d] {
		return set
	}

	for _, m := range d.Members {
		if _, ok := set.index[m.Key()]; !ok {
			set.add(m)
		}
	}

	if d.Kind == ir.DeclInterface {
		return set
	}

	rel := w.rels[d]
	provider := make(map[string]string)
	for _, t := range rel.traits {
		for _, m := range w.effective(t, false).members {
			key := m.Key()
			existing, ok := set.index[key]
			if !ok {
				set.add(m.Copy(d.FQN, false))
				provider[key] = t.FQN
				continue
			}
			kept, fromTrait := provider[key]
			if !fromTrait || existing.Origin == m.Origin {
				continue
			}
			if top {
				w.conflicts = append(w.conflicts, &symbols.TraitConflictError{
					Class:   d.FQN,
					Member:  m.Label(),
					Kept:    kept,
					Dropped: t.FQN,
				})
			}
		}
	}

	if rel.parent != nil {
		for _, m := range w.effective(rel.parent, false).members {
			if _, ok := set.index[m.Key()]; !ok {
				set.add(m.Copy(d.FQN, true))
			}
		}
	}
	return set
}

func computeHierarchyMetrics(res *Result, excluded map[*symbols.Declaration]bool) {
	for _, c := range res.order {
		if c.Parent != nil && !excluded[c.Decl] {
			if p, ok := res.Class(c.Parent.FQN); ok {
				p.NOC++
			}
		}
		depth := 0
		seen := map[*symbols.Declaration]bool{c.Decl: true}
		for cur := c; cur != nil && cur.Parent != nil && !seen[cur.Parent]; {
			seen[cur.Parent] = true
			depth++
			cur, _ = res.Class(cur.Parent.FQN)
		}
		c.DIT = depth
	}
}
