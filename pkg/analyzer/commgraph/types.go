package commgraph

import "github.com/panbanda/cohere/pkg/analyzer/resolve"

// Granularity selects which edge levels the builder maintains.
type Granularity string

const (
	GranularityClass  Granularity = "class"
	GranularityMember Granularity = "member"
	GranularityBoth   Granularity = "both"
)

// Members reports whether member-level edges are kept.
func (g Granularity) Members() bool {
	return g == GranularityMember || g == GranularityBoth || g == ""
}

// Classes reports whether class- and namespace-level edges are kept.
func (g Granularity) Classes() bool {
	return g == GranularityClass || g == GranularityBoth || g == ""
}

// String returns the string representation.
func (g Granularity) String() string {
	return string(g)
}

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityClass, GranularityMember, GranularityBoth:
		return true
	default:
		return false
	}
}

// Level names one of the aggregation levels of the graph.
type Level string

const (
	LevelMember    Level = "member"
	LevelClass     Level = "class"
	LevelNamespace Level = "namespace"
)

// String returns the string representation.
func (l Level) String() string {
	return string(l)
}

// NodeKind represents the type of graph node.
type NodeKind string

const (
	NodeClass     NodeKind = "class"
	NodeInterface NodeKind = "interface"
	NodeTrait     NodeKind = "trait"
	NodeFunction  NodeKind = "function"
	NodeMethod    NodeKind = "method"
	NodeProperty  NodeKind = "property"
	NodeConstant  NodeKind = "constant"
	NodeNamespace NodeKind = "namespace"
	NodeUnknown   NodeKind = "unknown"
)

// String returns the string representation.
func (n NodeKind) String() string {
	return string(n)
}

// UnknownID is the single sentinel node every unresolved reference targets.
const UnknownID = "?"

// Node is a declaration, member, namespace or the unknown sentinel.
type Node struct {
	ID        string   `json:"id" toon:"id"`
	Name      string   `json:"name" toon:"name"`
	Kind      NodeKind `json:"kind" toon:"kind"`
	Owner     string   `json:"owner,omitempty" toon:"owner,omitempty"`
	Namespace string   `json:"namespace,omitempty" toon:"namespace,omitempty"`
	Path      string   `json:"path,omitempty" toon:"path,omitempty"`
	Line      int      `json:"line,omitempty" toon:"line,omitempty"`
}

// Edge is one reference. Parallel edges are kept: two calls are two edges.
type Edge struct {
	From string       `json:"from" toon:"from"`
	To   string       `json:"to" toon:"to"`
	Kind resolve.Kind `json:"kind" toon:"kind"`
	Path string       `json:"path,omitempty" toon:"path,omitempty"`
	Line int          `json:"line,omitempty" toon:"line,omitempty"`

	// Inherited marks member-level edges found in an inherited copy of a
	// parent's method body.
	Inherited bool `json:"inherited,omitempty" toon:"inherited,omitempty"`
}

// SelfLoop reports whether the edge starts and ends at the same node.
func (e Edge) SelfLoop() bool {
	return e.From == e.To
}

// NamespaceID returns the node ID of a namespace. The global namespace is
// represented by a backslash.
func NamespaceID(ns string) string {
	if ns == "" {
		return `ns:\`
	}
	return "ns:" + ns
}
