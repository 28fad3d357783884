package coupling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// ErrUnknownNode is returned when a relation or reachability query names a
// node that is not in the graph.
var ErrUnknownNode = errors.New("coupling: unknown node")

// Usage is one reference from a member of one class to another class.
type Usage struct {
	Where  string       `json:"where" toon:"where"`
	Target string       `json:"target" toon:"target"`
	Kind   resolve.Kind `json:"kind" toon:"kind"`
	Line   int          `json:"line,omitempty" toon:"line,omitempty"`
}

// Direction describes how From depends on To.
type Direction struct {
	From       string  `json:"from" toon:"from"`
	To         string  `json:"to" toon:"to"`
	Extends    bool    `json:"extends" toon:"extends"`
	Implements bool    `json:"implements" toon:"implements"`
	UsesTrait  bool    `json:"uses_trait" toon:"uses_trait"`
	Uses       []Usage `json:"uses" toon:"uses"`
}

// Related reports whether From depends on To at all.
func (d Direction) Related() bool {
	return d.Extends || d.Implements || d.UsesTrait || len(d.Uses) > 0
}

// Relation is the two-way usage report between two declarations.
type Relation struct {
	Forward  Direction `json:"forward" toon:"forward"`
	Backward Direction `json:"backward" toon:"backward"`
}

// Relate reports how declarations a and b use each other. Member-level
// edges are used when the graph has them so that each usage names the
// member it occurs in; inherited copies are not counted twice.
func Relate(g *commgraph.Graph, a, b string) (*Relation, error) {
	a, b = strings.TrimPrefix(a, `\`), strings.TrimPrefix(b, `\`)
	for _, id := range []string{a, b} {
		if g.Owner(id) != id {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
		}
	}

	rel := &Relation{
		Forward:  Direction{From: a, To: b, Uses: make([]Usage, 0)},
		Backward: Direction{From: b, To: a, Uses: make([]Usage, 0)},
	}

	edges := g.ClassEdges()
	if g.Granularity().Members() {
		edges = g.MemberEdges()
	}
	for _, e := range edges {
		if e.Inherited {
			continue
		}
		from, to := g.Owner(e.From), g.Owner(e.To)
		switch {
		case from == a && to == b:
			rel.Forward.add(g, e)
		case from == b && to == a:
			rel.Backward.add(g, e)
		}
	}
	return rel, nil
}

func (d *Direction) add(g *commgraph.Graph, e commgraph.Edge) {
	switch e.Kind {
	case resolve.KindInheritance:
		if n, ok := g.Node(d.To); ok && n.Kind == commgraph.NodeInterface {
			d.Implements = true
		} else {
			d.Extends = true
		}
		return
	case resolve.KindTraitUse:
		d.UsesTrait = true
		return
	}
	d.Uses = append(d.Uses, Usage{Where: e.From, Target: e.To, Kind: e.Kind, Line: e.Line})
}

// Reachability is the result of a call-path query.
type Reachability struct {
	From      string   `json:"from" toon:"from"`
	To        string   `json:"to" toon:"to"`
	Reachable bool     `json:"reachable" toon:"reachable"`
	Path      []string `json:"path,omitempty" toon:"path,omitempty"`
}

// Reachable finds the shortest call path from one method or function to
// another, following call and static call edges only.
func Reachable(g *commgraph.Graph, from, to string) (*Reachability, error) {
	if !g.Granularity().Members() {
		return nil, errors.New("coupling: reachability needs member-level edges")
	}
	from, to = strings.TrimPrefix(from, `\`), strings.TrimPrefix(to, `\`)
	for _, id := range []string{from, to} {
		if _, ok := g.Node(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
		}
	}

	res := &Reachability{From: from, To: to}
	if from == to {
		res.Reachable = true
		res.Path = []string{from}
		return res, nil
	}

	ids := make(map[string]int64)
	names := make(map[int64]string)
	dg := simple.NewDirectedGraph()
	node := func(id string) simple.Node {
		gid, ok := ids[id]
		if !ok {
			gid = int64(len(ids))
			ids[id] = gid
			names[gid] = id
			dg.AddNode(simple.Node(gid))
		}
		return simple.Node(gid)
	}
	src, dst := node(from), node(to)

	for _, e := range g.MemberEdges() {
		if e.Kind != resolve.KindCall && e.Kind != resolve.KindStaticCall {
			continue
		}
		if e.SelfLoop() || e.To == commgraph.UnknownID {
			continue
		}
		f, t := node(e.From), node(e.To)
		dg.SetEdge(simple.Edge{F: f, T: t})
	}

	shortest := path.DijkstraFrom(src, dg)
	nodes, _ := shortest.To(dst.ID())
	if len(nodes) == 0 {
		return res, nil
	}
	res.Reachable = true
	res.Path = make([]string, len(nodes))
	for i, n := range nodes {
		res.Path[i] = names[n.ID()]
	}
	return res, nil
}
