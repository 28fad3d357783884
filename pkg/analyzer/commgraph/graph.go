// Package commgraph builds the communication graph: a directed multigraph
// whose nodes are declarations and members and whose edges are resolved
// references, kept simultaneously at member, class and namespace level.
package commgraph

import (
	"sort"

	"github.com/panbanda/cohere/pkg/analyzer/flatten"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/symbols"
)

// Builder accumulates references into a graph. It is used by a single
// goroutine at the merge barrier and must not be used after Freeze.
type Builder struct {
	granularity Granularity
	nodes       map[string]*Node
	member      []Edge
	class       []Edge
	namespace   []Edge
	frozen      bool
}

// NewBuilder creates a builder with a node for every declaration, every
// effective member and every namespace in the flattening result.
func NewBuilder(table *symbols.Table, flat *flatten.Result, granularity Granularity) *Builder {
	if granularity == "" {
		granularity = GranularityBoth
	}
	b := &Builder{granularity: granularity, nodes: make(map[string]*Node)}

	for _, d := range table.Declarations() {
		b.addNode(&Node{
			ID:        d.FQN,
			Name:      d.Name,
			Kind:      declKind(d.Kind),
			Namespace: d.Namespace,
			Path:      d.Location.Path,
			Line:      d.Location.Line,
		})
		b.addNamespace(d.Namespace)
	}
	for _, s := range table.Scopes() {
		b.addNamespace(s.Namespace)
	}

	if granularity.Members() {
		for _, c := range flat.Classes() {
			for _, m := range c.Members {
				b.addNode(&Node{
					ID:        m.ID(),
					Name:      m.Name,
					Kind:      memberKind(m.Kind),
					Owner:     m.Owner,
					Namespace: c.Decl.Namespace,
					Path:      m.Location.Path,
					Line:      m.Location.Line,
				})
			}
		}
	}
	return b
}

func (b *Builder) addNode(n *Node) {
	if _, ok := b.nodes[n.ID]; !ok {
		b.nodes[n.ID] = n
	}
}

func (b *Builder) addNamespace(ns string) {
	b.addNode(&Node{ID: NamespaceID(ns), Name: ns, Kind: NodeNamespace, Namespace: ns})
}

func (b *Builder) unknown() string {
	b.addNode(&Node{ID: UnknownID, Name: "unknown", Kind: NodeUnknown})
	return UnknownID
}

// ensure registers a node for an ID the builder has not seen, such as a
// member of a class excluded from flattening.
func (b *Builder) ensure(id string, kind NodeKind, owner string) string {
	if _, ok := b.nodes[id]; !ok {
		b.addNode(&Node{ID: id, Name: id, Kind: kind, Owner: owner, Namespace: ir.NamespaceOf(owner)})
	}
	return id
}

// Add records references in order.
func (b *Builder) Add(refs []resolve.Reference) {
	if b.frozen {
		panic("commgraph: add to frozen graph")
	}
	for _, r := range refs {
		if b.granularity.Members() {
			b.addMemberEdge(r)
		}
		if b.granularity.Classes() && !r.Inherited {
			b.addClassEdge(r)
			b.addNamespaceEdge(r)
		}
	}
}

func (b *Builder) addMemberEdge(r resolve.Reference) {
	from := r.Source.Member
	if from == "" {
		from = r.Source.Decl
	}
	if from == "" {
		return
	}

	var to string
	switch r.Target.Kind {
	case resolve.TargetMember:
		to = b.ensure(r.Target.Member, memberKind(r.Target.MemberKind), r.Target.Decl)
	case resolve.TargetDecl:
		to = r.Target.Decl
	case resolve.TargetUnknown:
		to = b.unknown()
	default:
		return
	}
	if r.Source.Member != "" {
		b.ensure(from, NodeMethod, r.Source.Decl)
	}
	b.member = append(b.member, Edge{
		From: from, To: to, Kind: r.Kind,
		Path: r.Source.Path, Line: r.Source.Line,
		Inherited: r.Inherited,
	})
}

func (b *Builder) addClassEdge(r resolve.Reference) {
	if r.Source.Decl == "" || r.Target.Kind == resolve.TargetNamespace {
		return
	}
	to := r.Target.Decl
	if to == "" {
		to = b.unknown()
	}
	b.class = append(b.class, Edge{From: r.Source.Decl, To: to, Kind: r.Kind, Path: r.Source.Path, Line: r.Source.Line})
}

func (b *Builder) addNamespaceEdge(r resolve.Reference) {
	var target string
	switch {
	case r.Target.Kind == resolve.TargetNamespace:
		target = r.Target.Namespace
	case r.Target.Decl != "":
		target = ir.NamespaceOf(r.Target.Decl)
	default:
		return
	}
	from, to := NamespaceID(r.Source.Namespace), NamespaceID(target)
	b.addNamespace(r.Source.Namespace)
	b.addNamespace(target)
	b.namespace = append(b.namespace, Edge{From: from, To: to, Kind: r.Kind, Path: r.Source.Path, Line: r.Source.Line})
}

// Freeze returns the read-only graph.
func (b *Builder) Freeze() *Graph {
	b.frozen = true

	ids := make([]string, 0, len(b.nodes))
	for id := range b.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g := &Graph{
		granularity: b.granularity,
		nodes:       b.nodes,
		ids:         ids,
		member:      b.member,
		class:       b.class,
		namespace:   b.namespace,
		intra:       make(map[string][]Edge),
	}
	for _, e := range b.member {
		from, to := b.nodes[e.From], b.nodes[e.To]
		if from != nil && to != nil && from.Owner != "" && from.Owner == to.Owner {
			g.intra[from.Owner] = append(g.intra[from.Owner], e)
		}
	}
	return g
}

// Graph is the frozen communication graph. All methods are safe for
// concurrent use; returned slices must not be modified.
type Graph struct {
	granularity Granularity
	nodes       map[string]*Node
	ids         []string
	member      []Edge
	class       []Edge
	namespace   []Edge
	intra       map[string][]Edge
}

// Granularity returns the levels the graph was built with.
func (g *Graph) Granularity() Granularity {
	return g.granularity
}

// Node finds a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node sorted by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.ids))
	for i, id := range g.ids {
		out[i] = g.nodes[id]
	}
	return out
}

// Edges returns the edges of a level in reference order.
func (g *Graph) Edges(level Level) []Edge {
	switch level {
	case LevelMember:
		return g.member
	case LevelClass:
		return g.class
	case LevelNamespace:
		return g.namespace
	default:
		return nil
	}
}

// MemberEdges returns the member-level edges.
func (g *Graph) MemberEdges() []Edge { return g.member }

// ClassEdges returns the class-level edges.
func (g *Graph) ClassEdges() []Edge { return g.class }

// NamespaceEdges returns the namespace-level edges.
func (g *Graph) NamespaceEdges() []Edge { return g.namespace }

// IntraClassEdges returns the member-level edges whose endpoints are both
// members of class.
func (g *Graph) IntraClassEdges(class string) []Edge {
	return g.intra[class]
}

// Owner maps a node to the declaration it belongs to: a member's class or
// the declaration itself. Namespaces and the unknown sentinel have none.
func (g *Graph) Owner(id string) string {
	n, ok := g.nodes[id]
	if !ok {
		return ""
	}
	switch n.Kind {
	case NodeUnknown, NodeNamespace:
		return ""
	}
	if n.Owner != "" {
		return n.Owner
	}
	return n.ID
}

func declKind(k ir.DeclKind) NodeKind {
	switch k {
	case ir.DeclInterface:
		return NodeInterface
	case ir.DeclTrait:
		return NodeTrait
	case ir.DeclFunction:
		return NodeFunction
	default:
		return NodeClass
	}
}

func memberKind(k symbols.MemberKind) NodeKind {
	switch k {
	case symbols.MemberProperty:
		return NodeProperty
	case symbols.MemberConstant:
		return NodeConstant
	default:
		return NodeMethod
	}
}
