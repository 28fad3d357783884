package commgraph

import (
	"context"
	"sort"
	"testing"

	"github.com/panbanda/cohere/pkg/analyzer/flatten"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/symbols"
	"github.com/panbanda/cohere/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, units []ir.Unit, granularity Granularity) *Graph {
	t.Helper()
	parts := make([]*symbols.Partial, len(units))
	for i := range units {
		parts[i] = symbols.CollectUnit(i, &units[i])
	}
	sb := symbols.NewBuilder()
	sb.Merge(parts)
	tbl, dups := sb.Freeze()
	require.Empty(t, dups)

	flat := flatten.New().Flatten(context.Background(), tbl)
	res := resolve.New().Resolve(context.Background(), tbl, flat)

	b := NewBuilder(tbl, flat, granularity)
	b.Add(res.References)
	return b.Freeze()
}

type pair struct{ from, to string }

func pairs(edges []Edge) []pair {
	out := make([]pair, len(edges))
	for i, e := range edges {
		out[i] = pair{e.From, e.To}
	}
	return out
}

func TestGraph_ClassEdgesKeepMultiplicity(t *testing.T) {
	g := build(t, testutil.RelationsFixture(), GranularityBoth)

	var aToB, bToA int
	kinds := map[resolve.Kind]int{}
	for _, e := range g.Edges(LevelClass) {
		switch {
		case e.From == "TargetClassA" && e.To == "TargetClassB":
			aToB++
		case e.From == "TargetClassB" && e.To == "TargetClassA":
			bToA++
			kinds[e.Kind]++
		}
	}
	assert.Equal(t, 2, aToB)
	assert.Equal(t, 4, bToA)
	assert.Equal(t, map[resolve.Kind]int{
		resolve.KindStaticCall:     1,
		resolve.KindInstantiation:  1,
		resolve.KindPropertyRead:   1,
		resolve.KindConstantAccess: 1,
	}, kinds)
}

func TestGraph_MemberEdges(t *testing.T) {
	g := build(t, testutil.RelationsFixture(), GranularityMember)

	var got []pair
	for _, e := range g.Edges(LevelMember) {
		if e.From == "TargetClassB::targetMethod()" {
			got = append(got, pair{e.From, e.To})
		}
	}
	assert.Equal(t, []pair{
		{"TargetClassB::targetMethod()", "TargetClassA::targetMethod1()"},
		{"TargetClassB::targetMethod()", "TargetClassA"},
		{"TargetClassB::targetMethod()", "TargetClassA::$field"},
		{"TargetClassB::targetMethod()", "TargetClassA::CONSTANT"},
	}, got)

	n, ok := g.Node("TargetClassA::$field")
	require.True(t, ok)
	assert.Equal(t, NodeProperty, n.Kind)
	assert.Equal(t, "TargetClassA", n.Owner)
}

func TestGraph_IntraClassEdges(t *testing.T) {
	g := build(t, testutil.LCOMFixture(), GranularityBoth)

	assert.Equal(t, []pair{
		{"LCOM::publicMethod()", "LCOM::CONSTANT_ZERO"},
		{"LCOM::publicMethod()", "LCOM::internalMethod()"},
		{"LCOM::publicMethod()", "LCOM::$publicProp"},
		{"LCOM::publicMethod()", "LCOM::$privateProp"},
		{"LCOM::internalMethod()", "LCOM::CONSTANT_ONE"},
		{"LCOM::internalMethod()", "LCOM::$privateProp"},
		{"LCOM::group1Method()", "LCOM::$group1Prop"},
	}, pairs(g.IntraClassEdges("LCOM")))
	assert.Empty(t, g.IntraClassEdges("Missing"))
}

func TestGraph_UnknownSentinel(t *testing.T) {
	g := build(t, testutil.NamespacesFixture(), GranularityBoth)

	n, ok := g.Node(UnknownID)
	require.True(t, ok)
	assert.Equal(t, NodeUnknown, n.Kind)

	assert.Contains(t, pairs(g.Edges(LevelClass)), pair{`E\EFunc`, UnknownID})
	assert.Contains(t, pairs(g.Edges(LevelMember)), pair{`E\EFunc`, UnknownID})

	for _, e := range g.Edges(LevelNamespace) {
		assert.NotEqual(t, UnknownID, e.To)
	}
}

func TestGraph_NamespaceEdges(t *testing.T) {
	g := build(t, testutil.NamespacesFixture(), GranularityClass)

	got := map[pair]int{}
	for _, e := range g.Edges(LevelNamespace) {
		got[pair{e.From, e.To}]++
	}
	assert.Equal(t, map[pair]int{
		{"ns:A", "ns:B"}: 1,
		{"ns:A", "ns:D"}: 1,
		{"ns:A", "ns:C"}: 1,
		{"ns:A", "ns:E"}: 1,
		{"ns:B", "ns:C"}: 1,
		{"ns:C", "ns:A"}: 1,
		{"ns:D", "ns:A"}: 1,
		{"ns:E", "ns:C"}: 1,
	}, got)
	assert.Empty(t, g.Edges(LevelMember))
}

func TestGraph_InheritedReferencesStayMemberLevel(t *testing.T) {
	units := []ir.Unit{{
		Path: "inherit.php",
		Decls: []ir.Decl{
			{Kind: ir.DeclClass, Name: "Base",
				Properties: []ir.Property{testutil.Property("id", "int")},
				Methods:    []ir.Method{testutil.Method("save", testutil.ThisProp("id"))},
			},
			{Kind: ir.DeclClass, Name: "User", Extends: []string{"Base"}},
		},
	}}
	g := build(t, units, GranularityBoth)

	assert.Equal(t, []pair{
		{"Base", "Base"},
		{"User", "Base"},
	}, sortedPairs(g.Edges(LevelClass)))
	assert.Contains(t, pairs(g.Edges(LevelMember)), pair{"User::save()", "User::$id"})
	assert.Equal(t, []pair{{"User::save()", "User::$id"}}, pairs(g.IntraClassEdges("User")))
}

func TestGraph_Granularity(t *testing.T) {
	g := build(t, testutil.MethodsFixture(), GranularityMember)
	assert.NotEmpty(t, g.Edges(LevelMember))
	assert.Empty(t, g.Edges(LevelClass))
	assert.Empty(t, g.Edges(LevelNamespace))
	assert.Equal(t, GranularityMember, g.Granularity())

	g = build(t, testutil.MethodsFixture(), GranularityClass)
	assert.Empty(t, g.Edges(LevelMember))
	assert.NotEmpty(t, g.Edges(LevelClass))
	_, ok := g.Node("AA::AAMethod()")
	assert.False(t, ok)

	assert.True(t, GranularityBoth.Valid())
	assert.False(t, Granularity("graph").Valid())
}

func TestGraph_NodesSorted(t *testing.T) {
	g := build(t, testutil.NamespacesFixture(), GranularityBoth)
	nodes := g.Nodes()
	require.NotEmpty(t, nodes)
	assert.True(t, sort.SliceIsSorted(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID }))
}

func TestBuilder_AddAfterFreezePanics(t *testing.T) {
	tbl, _ := symbols.NewBuilder().Freeze()
	flat := flatten.New().Flatten(context.Background(), tbl)
	b := NewBuilder(tbl, flat, GranularityBoth)
	b.Freeze()
	assert.Panics(t, func() { b.Add(nil) })
}

func sortedPairs(edges []Edge) []pair {
	out := pairs(edges)
	sort.Slice(out, func(i, j int) bool {
		if out[i].from != out[j].from {
			return out[i].from < out[j].from
		}
		return out[i].to < out[j].to
	})
	return out
}

func TestGraph_SelfLoopsKept(t *testing.T) {
	g := build(t, testutil.SelfCallFixture(), GranularityMember)

	self := pair{"Recursive::walk()", "Recursive::walk()"}
	assert.Contains(t, pairs(g.Edges(LevelMember)), self)
	assert.Contains(t, pairs(g.IntraClassEdges("Recursive")), self)
	assert.Contains(t, pairs(g.IntraClassEdges("Recursive")), pair{"Recursive::walk()", "Recursive::visit()"})

	for _, e := range g.IntraClassEdges("Recursive") {
		if e.From == e.To {
			assert.Equal(t, resolve.KindStaticCall, e.Kind)
		}
	}
}
