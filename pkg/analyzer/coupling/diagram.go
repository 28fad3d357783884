package coupling

import (
	"fmt"
	"sort"
	"strings"

	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"gonum.org/v1/gonum/graph/network"
)

// DiagramNode is a node of a rendered graph.
type DiagramNode struct {
	ID    string             `json:"id" toon:"id"`
	Label string             `json:"label" toon:"label"`
	Kind  commgraph.NodeKind `json:"kind" toon:"kind"`
}

// DiagramEdge is an aggregated edge of a rendered graph. Kind is the most
// frequent reference kind between the endpoints.
type DiagramEdge struct {
	From   string       `json:"from" toon:"from"`
	To     string       `json:"to" toon:"to"`
	Kind   resolve.Kind `json:"kind" toon:"kind"`
	Weight int          `json:"weight" toon:"weight"`
}

// Diagram is a renderable view of one graph level.
type Diagram struct {
	Nodes []DiagramNode `json:"nodes" toon:"nodes"`
	Edges []DiagramEdge `json:"edges" toon:"edges"`
}

// NewDiagram builds a diagram from the pairs of a level. Only nodes that
// take part in a pair are included.
func NewDiagram(g *commgraph.Graph, l *Level) *Diagram {
	return diagramFromPairs(g, l.Pairs)
}

// ClassDiagram renders the member-level communication inside one class:
// the edges whose clusters make up its LCOM.
func ClassDiagram(g *commgraph.Graph, class string) *Diagram {
	return diagramFromPairs(g, aggregate(g.IntraClassEdges(class)))
}

func diagramFromPairs(g *commgraph.Graph, pairs []Pair) *Diagram {
	d := &Diagram{Nodes: make([]DiagramNode, 0), Edges: make([]DiagramEdge, 0, len(pairs))}
	seen := make(map[string]bool)
	addNode := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		n := DiagramNode{ID: id, Label: id}
		if node, ok := g.Node(id); ok {
			n.Kind = node.Kind
			if node.Kind == commgraph.NodeNamespace && node.Name == "" {
				n.Label = `\`
			} else if node.Kind == commgraph.NodeNamespace {
				n.Label = node.Name
			}
		}
		d.Nodes = append(d.Nodes, n)
	}

	for _, p := range pairs {
		addNode(p.From)
		addNode(p.To)
		d.Edges = append(d.Edges, DiagramEdge{From: p.From, To: p.To, Kind: dominantKind(p.Kinds), Weight: p.Count})
	}
	sort.Slice(d.Nodes, func(i, j int) bool { return d.Nodes[i].ID < d.Nodes[j].ID })
	return d
}

func dominantKind(kinds map[resolve.Kind]int) resolve.Kind {
	var best resolve.Kind
	for k, n := range kinds {
		if n > kinds[best] || (n == kinds[best] && (best == "" || k < best)) {
			best = k
		}
	}
	return best
}

// MermaidOptions configures Mermaid diagram generation.
type MermaidOptions struct {
	MaxNodes    int              `json:"max_nodes" toon:"max_nodes"`
	MaxEdges    int              `json:"max_edges" toon:"max_edges"`
	ShowWeights bool             `json:"show_weights" toon:"show_weights"`
	Direction   MermaidDirection `json:"direction" toon:"direction"`
}

// MermaidDirection specifies the graph direction.
type MermaidDirection string

const (
	DirectionTD MermaidDirection = "TD" // Top-down
	DirectionLR MermaidDirection = "LR" // Left-right
	DirectionBT MermaidDirection = "BT" // Bottom-top
	DirectionRL MermaidDirection = "RL" // Right-left
)

// DefaultMermaidOptions returns sensible defaults.
func DefaultMermaidOptions() MermaidOptions {
	return MermaidOptions{
		MaxNodes:    50,
		MaxEdges:    150,
		ShowWeights: true,
		Direction:   DirectionLR,
	}
}

// ToMermaid generates Mermaid diagram syntax using default options.
func (d *Diagram) ToMermaid() string {
	return d.ToMermaidWithOptions(DefaultMermaidOptions())
}

// ToMermaidWithOptions generates Mermaid diagram syntax. When the diagram
// exceeds the limits it is pruned by PageRank first.
func (d *Diagram) ToMermaidWithOptions(opts MermaidOptions) string {
	direction := opts.Direction
	if direction == "" {
		direction = DirectionTD
	}

	view := d
	if opts.MaxNodes > 0 || opts.MaxEdges > 0 {
		view = d.Prune(opts.MaxNodes, opts.MaxEdges)
	}

	var b strings.Builder
	b.WriteString("graph " + string(direction) + "\n")
	for _, n := range view.Nodes {
		b.WriteString("    " + SanitizeMermaidID(n.ID) + nodeShape(n) + "\n")
	}
	for _, e := range view.Edges {
		label := string(e.Kind)
		if opts.ShowWeights && e.Weight > 1 {
			label = fmt.Sprintf("%s x%d", e.Kind, e.Weight)
		}
		b.WriteString("    " + SanitizeMermaidID(e.From) + " " + edgeArrow(e.Kind) + "|" + EscapeMermaidLabel(label) + "| " + SanitizeMermaidID(e.To) + "\n")
	}
	return b.String()
}

func nodeShape(n DiagramNode) string {
	label := EscapeMermaidLabel(n.Label)
	switch n.Kind {
	case commgraph.NodeInterface:
		return "([\"" + label + "\"])"
	case commgraph.NodeTrait:
		return "{{\"" + label + "\"}}"
	case commgraph.NodeFunction, commgraph.NodeMethod:
		return "(\"" + label + "\")"
	case commgraph.NodeProperty, commgraph.NodeConstant:
		return "[/\"" + label + "\"/]"
	default:
		return "[\"" + label + "\"]"
	}
}

// edgeArrow returns the Mermaid arrow notation for a reference kind.
func edgeArrow(k resolve.Kind) string {
	switch k {
	case resolve.KindInheritance:
		return "==>"
	case resolve.KindTraitUse, resolve.KindNamespaceUse:
		return "-.->"
	default:
		return "-->"
	}
}

// ToDOT generates Graphviz DOT syntax.
func (d *Diagram) ToDOT(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  rankdir=LR;\n  node [shape=box];\n")
	for _, n := range d.Nodes {
		shape := "box"
		switch n.Kind {
		case commgraph.NodeInterface:
			shape = "ellipse"
		case commgraph.NodeTrait:
			shape = "hexagon"
		case commgraph.NodeFunction, commgraph.NodeMethod:
			shape = "oval"
		case commgraph.NodeProperty, commgraph.NodeConstant:
			shape = "note"
		}
		fmt.Fprintf(&b, "  %q [label=%q, shape=%s];\n", n.ID, n.Label, shape)
	}
	for _, e := range d.Edges {
		style := "solid"
		if e.Kind == resolve.KindTraitUse || e.Kind == resolve.KindNamespaceUse {
			style = "dashed"
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q, weight=%d, style=%s];\n", e.From, e.To, string(e.Kind), e.Weight, style)
	}
	b.WriteString("}\n")
	return b.String()
}

// rankedNode pairs a diagram node with its PageRank score for sorting.
type rankedNode struct {
	node DiagramNode
	rank float64
}

// Prune reduces the diagram to at most maxNodes nodes and maxEdges edges,
// keeping the nodes with the highest PageRank. A limit <= 0 is no limit.
func (d *Diagram) Prune(maxNodes, maxEdges int) *Diagram {
	if (maxNodes <= 0 || len(d.Nodes) <= maxNodes) && (maxEdges <= 0 || len(d.Edges) <= maxEdges) {
		return d
	}

	ids := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
	}
	pairs := make([]Pair, len(d.Edges))
	for i, e := range d.Edges {
		pairs[i] = Pair{From: e.From, To: e.To, Count: e.Weight}
	}
	gGraph := toGonumGraph(ids, pairs)
	pageRankMap := network.PageRank(gGraph.directed, 0.85, 1e-6)

	ranked := make([]rankedNode, len(d.Nodes))
	for i, n := range d.Nodes {
		ranked[i] = rankedNode{node: n, rank: pageRankMap[gGraph.nodeIDToID[n.ID]]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].rank > ranked[j].rank })

	limit := len(ranked)
	if maxNodes > 0 && maxNodes < limit {
		limit = maxNodes
	}
	pruned := &Diagram{Nodes: make([]DiagramNode, 0, limit), Edges: make([]DiagramEdge, 0)}
	keep := make(map[string]bool, limit)
	for _, r := range ranked[:limit] {
		pruned.Nodes = append(pruned.Nodes, r.node)
		keep[r.node.ID] = true
	}
	sort.Slice(pruned.Nodes, func(i, j int) bool { return pruned.Nodes[i].ID < pruned.Nodes[j].ID })

	for _, e := range d.Edges {
		if maxEdges > 0 && len(pruned.Edges) >= maxEdges {
			break
		}
		if keep[e.From] && keep[e.To] {
			pruned.Edges = append(pruned.Edges, e)
		}
	}
	return pruned
}

// SanitizeMermaidID makes an ID safe for Mermaid diagrams.
func SanitizeMermaidID(id string) string {
	if id == "" {
		return "empty"
	}
	var result []byte
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	if result[0] >= '0' && result[0] <= '9' {
		result = append([]byte{'n'}, result...)
	}
	return string(result)
}

// EscapeMermaidLabel escapes special characters in labels for Mermaid.
func EscapeMermaidLabel(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		`"`, "&quot;",
		"<", "&lt;",
		">", "&gt;",
		"|", "&#124;",
		"[", "&#91;",
		"]", "&#93;",
		"{", "&#123;",
		"}", "&#125;",
		"\n", "<br/>",
	)
	return r.Replace(s)
}
