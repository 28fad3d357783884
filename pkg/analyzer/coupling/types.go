package coupling

import (
	"sort"

	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
)

// Pair aggregates every edge from one node to another.
type Pair struct {
	From  string               `json:"from" toon:"from"`
	To    string               `json:"to" toon:"to"`
	Count int                  `json:"count" toon:"count"`
	Kinds map[resolve.Kind]int `json:"kinds" toon:"kinds"`
}

// NodeMetrics holds degree-based coupling metrics for one node.
type NodeMetrics struct {
	ID        string             `json:"id" toon:"id"`
	Kind      commgraph.NodeKind `json:"kind" toon:"kind"`
	Namespace string             `json:"namespace,omitempty" toon:"namespace,omitempty"`

	// Edge counts, parallel edges included.
	InDegree  int `json:"in_degree" toon:"in_degree"`
	OutDegree int `json:"out_degree" toon:"out_degree"`

	// Distinct neighbours.
	Afferent int `json:"afferent" toon:"afferent"`
	Efferent int `json:"efferent" toon:"efferent"`

	// Instability = Ce / (Ca + Ce); 0 when isolated.
	Instability float64 `json:"instability" toon:"instability"`
}

// NamespaceMetrics extends NodeMetrics with Martin's package metrics.
type NamespaceMetrics struct {
	NodeMetrics

	Name         string  `json:"name" toon:"name"`
	Types        int     `json:"types" toon:"types"`
	AbstractType int     `json:"abstract_types" toon:"abstract_types"`
	Abstractness float64 `json:"abstractness" toon:"abstractness"`

	// Distance from the main sequence: |A + I - 1|.
	Distance float64 `json:"distance" toon:"distance"`
}

// Cycle is an elementary cycle. The node with the smallest ID comes first
// and the closing edge back to it is implied.
type Cycle struct {
	Nodes []string `json:"nodes" toon:"nodes"`
}

// Len returns the number of nodes on the cycle.
func (c Cycle) Len() int {
	return len(c.Nodes)
}

// Contains reports whether id is on the cycle.
func (c Cycle) Contains(id string) bool {
	for _, n := range c.Nodes {
		if n == id {
			return true
		}
	}
	return false
}

// Level holds the coupling results of one aggregation level.
type Level struct {
	Pairs  []Pair        `json:"pairs" toon:"pairs"`
	Nodes  []NodeMetrics `json:"nodes" toon:"nodes"`
	SCCs   [][]string    `json:"sccs,omitempty" toon:"sccs,omitempty"`
	Cycles []Cycle       `json:"cycles,omitempty" toon:"cycles,omitempty"`

	// Truncated is set when the cycle cap or the search budget was reached,
	// or an SCC was too large to enumerate.
	Truncated bool `json:"truncated,omitempty" toon:"truncated,omitempty"`
}

// Node finds the metrics of a node by ID.
func (l *Level) Node(id string) (*NodeMetrics, bool) {
	i := sort.Search(len(l.Nodes), func(i int) bool { return l.Nodes[i].ID >= id })
	if i < len(l.Nodes) && l.Nodes[i].ID == id {
		return &l.Nodes[i], true
	}
	return nil, false
}

// Pair finds the pair from -> to.
func (l *Level) Pair(from, to string) (*Pair, bool) {
	for i := range l.Pairs {
		if l.Pairs[i].From == from && l.Pairs[i].To == to {
			return &l.Pairs[i], true
		}
	}
	return nil, false
}

// Summary provides aggregate coupling statistics.
type Summary struct {
	ClassPairs           int     `json:"class_pairs" toon:"class_pairs"`
	NamespacePairs       int     `json:"namespace_pairs" toon:"namespace_pairs"`
	ClassCycles          int     `json:"class_cycles" toon:"class_cycles"`
	NamespaceCycles      int     `json:"namespace_cycles" toon:"namespace_cycles"`
	AvgInstability       float64 `json:"avg_instability" toon:"avg_instability"`
	MaxEfferent          int     `json:"max_efferent" toon:"max_efferent"`
	MaxAfferent          int     `json:"max_afferent" toon:"max_afferent"`
	AvgDistance          float64 `json:"avg_distance" toon:"avg_distance"`
	UnstableClassesCount int     `json:"unstable_classes" toon:"unstable_classes"`
	IsCyclic             bool    `json:"is_cyclic" toon:"is_cyclic"`
}

// Analysis represents the full coupling analysis result.
type Analysis struct {
	Classes    Level              `json:"classes" toon:"classes"`
	Namespaces Level              `json:"namespaces" toon:"namespaces"`
	Packages   []NamespaceMetrics `json:"packages" toon:"packages"`
	Summary    Summary            `json:"summary" toon:"summary"`
}

// Namespace finds the package metrics of a namespace by name.
func (a *Analysis) Namespace(name string) (*NamespaceMetrics, bool) {
	for i := range a.Packages {
		if a.Packages[i].Name == name {
			return &a.Packages[i], true
		}
	}
	return nil, false
}

// SortByInstability sorts class metrics by instability, most unstable first.
func (a *Analysis) SortByInstability() []NodeMetrics {
	out := append([]NodeMetrics(nil), a.Classes.Nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Instability > out[j].Instability
	})
	return out
}

// SortByEfferent sorts class metrics by efferent coupling, highest first.
func (a *Analysis) SortByEfferent() []NodeMetrics {
	out := append([]NodeMetrics(nil), a.Classes.Nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Efferent > out[j].Efferent
	})
	return out
}
