package coupling

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/flatten"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/symbols"
	"github.com/panbanda/cohere/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, units []ir.Unit, granularity commgraph.Granularity) (*commgraph.Graph, *symbols.Table) {
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

	b := commgraph.NewBuilder(tbl, flat, granularity)
	b.Add(res.References)
	return b.Freeze(), tbl
}

func analyze(t *testing.T, units []ir.Unit, opts ...Option) *Analysis {
	t.Helper()
	g, tbl := build(t, units, commgraph.GranularityBoth)
	a, err := New(opts...).Analyze(context.Background(), g, tbl)
	require.NoError(t, err)
	return a
}

func cycles(cs []Cycle) [][]string {
	out := make([][]string, len(cs))
	for i, c := range cs {
		out[i] = c.Nodes
	}
	return out
}

func TestAnalyze_NamespaceCycles(t *testing.T) {
	a := analyze(t, testutil.NamespacesFixture())

	assert.Equal(t, [][]string{
		{"ns:A", "ns:C"},
		{"ns:A", "ns:D"},
		{"ns:A", "ns:B", "ns:C"},
		{"ns:A", "ns:E", "ns:C"},
	}, cycles(a.Namespaces.Cycles))
	assert.Equal(t, [][]string{{"ns:A", "ns:B", "ns:C", "ns:D", "ns:E"}}, a.Namespaces.SCCs)
	assert.False(t, a.Namespaces.Truncated)
	assert.True(t, a.Summary.IsCyclic)
}

func TestAnalyze_ClassCycles(t *testing.T) {
	a := analyze(t, testutil.NamespacesFixture())

	assert.Equal(t, [][]string{
		{`A\AClass`, `B\BClass`, `C\CClass`},
		{`A\AClass`, `D\DClass`, `A\AFunc`, `C\CClass`},
		{`A\AClass`, `D\DClass`, `A\AFunc`, `E\EFunc`, `C\CClass`},
	}, cycles(a.Classes.Cycles))
	assert.Equal(t, [][]string{
		{`A\AClass`, `A\AFunc`, `B\BClass`, `C\CClass`, `D\DClass`, `E\EFunc`},
	}, a.Classes.SCCs)
	assert.Equal(t, 3, a.Summary.ClassCycles)
}

func TestAnalyze_CycleLimits(t *testing.T) {
	a := analyze(t, testutil.NamespacesFixture(), WithMaxCycles(1))
	require.Len(t, a.Classes.Cycles, 1)
	assert.Equal(t, []string{`A\AClass`, `B\BClass`, `C\CClass`}, a.Classes.Cycles[0].Nodes)
	assert.True(t, a.Classes.Truncated)

	a = analyze(t, testutil.NamespacesFixture(), WithMaxCycleSCC(2))
	assert.Empty(t, a.Classes.Cycles)
	assert.Len(t, a.Classes.SCCs, 1)
	assert.True(t, a.Classes.Truncated)
}

func completeGraph(n int) ([]string, []Pair) {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("N%02d", i)
	}
	var pairs []Pair
	for _, a := range ids {
		for _, b := range ids {
			if a != b {
				pairs = append(pairs, Pair{From: a, To: b, Count: 1})
			}
		}
	}
	return ids, pairs
}

func TestElementaryCycles_DenseComponentStopsAtCap(t *testing.T) {
	ids, pairs := completeGraph(16)
	sccs := stronglyConnected(ids, pairs)
	require.Len(t, sccs, 1)

	start := time.Now()
	cs, truncated, err := elementaryCycles(context.Background(), sccs, pairs, DefaultMaxCycleSCC, DefaultMaxCycles)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, truncated)
	require.Len(t, cs, DefaultMaxCycles)

	// All 120 two-cycles of K16 come before any longer cycle.
	for i, c := range cs {
		if i < 120 {
			assert.Equal(t, 2, c.Len(), "cycle %d", i)
		} else {
			assert.Equal(t, 3, c.Len(), "cycle %d", i)
		}
	}
	assert.Equal(t, []string{"N00", "N01"}, cs[0].Nodes)
}

func TestElementaryCycles_StepBudget(t *testing.T) {
	ids, pairs := completeGraph(24)
	sccs := stronglyConnected(ids, pairs)

	start := time.Now()
	cs, truncated, err := elementaryCycles(context.Background(), sccs, pairs, 0, 0)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, truncated)
	assert.NotEmpty(t, cs)
}

func TestElementaryCycles_Cancelled(t *testing.T) {
	ids, pairs := completeGraph(24)
	sccs := stronglyConnected(ids, pairs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := elementaryCycles(ctx, sccs, pairs, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestElementaryCycles_ExactCapIsNotTruncated(t *testing.T) {
	ids, pairs := completeGraph(3)
	sccs := stronglyConnected(ids, pairs)

	// K3 has three two-cycles and two three-cycles.
	cs, truncated, err := elementaryCycles(context.Background(), sccs, pairs, 0, 5)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, [][]string{
		{"N00", "N01"}, {"N00", "N02"}, {"N01", "N02"},
		{"N00", "N01", "N02"}, {"N00", "N02", "N01"},
	}, cycles(cs))
}

func TestAnalyze_PairsKeepKindMultiset(t *testing.T) {
	a := analyze(t, testutil.RelationsFixture())

	p, ok := a.Classes.Pair("TargetClassB", "TargetClassA")
	require.True(t, ok)
	assert.Equal(t, 4, p.Count)
	assert.Equal(t, map[resolve.Kind]int{
		resolve.KindStaticCall:     1,
		resolve.KindInstantiation:  1,
		resolve.KindPropertyRead:   1,
		resolve.KindConstantAccess: 1,
	}, p.Kinds)

	p, ok = a.Classes.Pair("TargetClassA", "TargetClassB")
	require.True(t, ok)
	assert.Equal(t, 2, p.Count)
	assert.Equal(t, map[resolve.Kind]int{resolve.KindStaticCall: 2}, p.Kinds)

	assert.Equal(t, [][]string{{"TargetClassA", "TargetClassB"}}, cycles(a.Classes.Cycles))
}

func TestAnalyze_Degrees(t *testing.T) {
	a := analyze(t, testutil.NamespacesFixture())

	n, ok := a.Classes.Node(`A\AClass`)
	require.True(t, ok)
	assert.Equal(t, 2, n.OutDegree)
	assert.Equal(t, 1, n.InDegree)
	assert.Equal(t, 2, n.Efferent)
	assert.Equal(t, 1, n.Afferent)
	assert.InDelta(t, 2.0/3.0, n.Instability, 1e-9)

	n, ok = a.Classes.Node(`C\CClass`)
	require.True(t, ok)
	assert.Equal(t, 3, n.InDegree)
	assert.Equal(t, 1, n.OutDegree)

	ns, ok := a.Namespace("A")
	require.True(t, ok)
	assert.Equal(t, 4, ns.Efferent)
	assert.Equal(t, 2, ns.Afferent)
	assert.Equal(t, 1, ns.Types)
	assert.InDelta(t, 0, ns.Abstractness, 1e-9)
	assert.InDelta(t, 1.0/3.0, ns.Distance, 1e-9)
}

func TestAnalyze_SelfReferencesAreNotCoupling(t *testing.T) {
	a := analyze(t, testutil.SelfCallFixture())

	assert.Empty(t, a.Classes.Pairs)
	assert.Empty(t, a.Classes.Cycles)
	n, ok := a.Classes.Node("Recursive")
	require.True(t, ok)
	assert.Equal(t, 0, n.OutDegree)
	assert.False(t, a.Summary.IsCyclic)
}

func TestAnalyze_Abstractness(t *testing.T) {
	units := []ir.Unit{{
		Path: "shapes.php", Namespace: "Shapes",
		Decls: []ir.Decl{
			{Kind: ir.DeclInterface, Name: "Shape"},
			{Kind: ir.DeclClass, Name: "Base", Abstract: true, Implements: []string{"Shape"}},
			{Kind: ir.DeclClass, Name: "Circle", Extends: []string{"Base"}},
			{Kind: ir.DeclClass, Name: "Square", Extends: []string{"Base"}},
		},
	}}
	a := analyze(t, units)

	ns, ok := a.Namespace("Shapes")
	require.True(t, ok)
	assert.Equal(t, 4, ns.Types)
	assert.Equal(t, 2, ns.AbstractType)
	assert.InDelta(t, 0.5, ns.Abstractness, 1e-9)
	assert.InDelta(t, 0.5, ns.Distance, 1e-9)
}

func TestAnalyze_RequiresClassEdges(t *testing.T) {
	g, tbl := build(t, testutil.LCOMFixture(), commgraph.GranularityMember)
	_, err := New().Analyze(context.Background(), g, tbl)
	assert.ErrorIs(t, err, ErrNoClassEdges)
}

func TestAnalyze_Deterministic(t *testing.T) {
	units := append(testutil.NamespacesFixture(), testutil.MethodsFixture()...)
	first := analyze(t, units)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, analyze(t, units))
	}
}

func TestRelate(t *testing.T) {
	g, _ := build(t, testutil.RelationsFixture(), commgraph.GranularityBoth)

	rel, err := Relate(g, "TargetClassB", `\TargetClassA`)
	require.NoError(t, err)

	assert.Equal(t, []Usage{
		{Where: "TargetClassB::targetMethod()", Target: "TargetClassA::targetMethod1()", Kind: resolve.KindStaticCall},
		{Where: "TargetClassB::targetMethod()", Target: "TargetClassA", Kind: resolve.KindInstantiation},
		{Where: "TargetClassB::targetMethod()", Target: "TargetClassA::$field", Kind: resolve.KindPropertyRead},
		{Where: "TargetClassB::targetMethod()", Target: "TargetClassA::CONSTANT", Kind: resolve.KindConstantAccess},
	}, stripLines(rel.Forward.Uses))
	assert.Len(t, rel.Backward.Uses, 2)
	assert.True(t, rel.Forward.Related())

	_, err = Relate(g, "TargetClassB", "Nope")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestRelate_Hierarchy(t *testing.T) {
	units := []ir.Unit{{
		Path: "h.php",
		Decls: []ir.Decl{
			{Kind: ir.DeclInterface, Name: "Named"},
			{Kind: ir.DeclTrait, Name: "Greets"},
			{Kind: ir.DeclClass, Name: "Base"},
			{Kind: ir.DeclClass, Name: "User", Extends: []string{"Base"}, Implements: []string{"Named"}, Traits: []string{"Greets"}},
		},
	}}
	g, _ := build(t, units, commgraph.GranularityBoth)

	rel, err := Relate(g, "User", "Base")
	require.NoError(t, err)
	assert.True(t, rel.Forward.Extends)
	assert.False(t, rel.Backward.Related())

	rel, err = Relate(g, "User", "Named")
	require.NoError(t, err)
	assert.True(t, rel.Forward.Implements)

	rel, err = Relate(g, "User", "Greets")
	require.NoError(t, err)
	assert.True(t, rel.Forward.UsesTrait)
	assert.Empty(t, rel.Forward.Uses)
}

func stripLines(us []Usage) []Usage {
	out := make([]Usage, len(us))
	for i, u := range us {
		u.Line = 0
		out[i] = u
	}
	return out
}

func TestReachable(t *testing.T) {
	g, _ := build(t, testutil.MethodsFixture(), commgraph.GranularityBoth)

	r, err := Reachable(g, "AE::AEMethod()", "AB::ABMethod()")
	require.NoError(t, err)
	assert.True(t, r.Reachable)
	assert.Equal(t, []string{"AE::AEMethod()", "AD::ADMethod()", "AA::AAMethod()", "AB::ABMethod()"}, r.Path)

	r, err = Reachable(g, "AB::ABMethod()", "AE::AEMethod()")
	require.NoError(t, err)
	assert.Equal(t, []string{"AB::ABMethod()", "AA::AAMethod()", "AE::AEMethod()"}, r.Path)

	r, err = Reachable(g, "AA::AAMethod()", "AA::AAMethod()")
	require.NoError(t, err)
	assert.Equal(t, []string{"AA::AAMethod()"}, r.Path)

	_, err = Reachable(g, "AA::missing()", "AB::ABMethod()")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestReachable_NotReachable(t *testing.T) {
	g, _ := build(t, testutil.RelationsFixture(), commgraph.GranularityBoth)

	r, err := Reachable(g, "TargetClassB::targetMethod()", "TargetClassA::targetMethod2()")
	require.NoError(t, err)
	assert.False(t, r.Reachable)
	assert.Empty(t, r.Path)
}

func TestDiagram_Mermaid(t *testing.T) {
	g, tbl := build(t, testutil.RelationsFixture(), commgraph.GranularityBoth)
	a, err := New().Analyze(context.Background(), g, tbl)
	require.NoError(t, err)

	d := NewDiagram(g, &a.Classes)
	require.Len(t, d.Nodes, 2)
	require.Len(t, d.Edges, 2)

	out := d.ToMermaid()
	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.Contains(t, out, `TargetClassA["TargetClassA"]`)
	assert.Contains(t, out, "TargetClassA -->|static_call x2| TargetClassB")

	dot := d.ToDOT("classes")
	assert.Contains(t, dot, `digraph "classes" {`)
	assert.Contains(t, dot, `"TargetClassB" -> "TargetClassA"`)
}

func TestClassDiagram(t *testing.T) {
	g, _ := build(t, testutil.LCOMFixture(), commgraph.GranularityBoth)
	d := ClassDiagram(g, "LCOM")

	assert.Len(t, d.Edges, 7)
	out := d.ToMermaidWithOptions(MermaidOptions{Direction: DirectionTD})
	assert.Contains(t, out, "graph TD\n")
	assert.Contains(t, out, `LCOM___privateProp[/"LCOM::$privateProp"/]`)
}

func TestDiagram_Prune(t *testing.T) {
	d := &Diagram{
		Nodes: []DiagramNode{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "hub"}},
		Edges: []DiagramEdge{
			{From: "a", To: "hub", Weight: 1},
			{From: "b", To: "hub", Weight: 1},
			{From: "c", To: "hub", Weight: 1},
			{From: "hub", To: "a", Weight: 1},
		},
	}

	assert.Same(t, d, d.Prune(10, 10))

	p := d.Prune(2, 10)
	require.Len(t, p.Nodes, 2)
	ids := []string{p.Nodes[0].ID, p.Nodes[1].ID}
	assert.Contains(t, ids, "hub")
	assert.Contains(t, ids, "a")
	assert.Len(t, p.Edges, 2)
}

func TestSanitizeMermaidID(t *testing.T) {
	assert.Equal(t, "empty", SanitizeMermaidID(""))
	assert.Equal(t, "App_User__save__", SanitizeMermaidID(`App\User::save()`))
	assert.Equal(t, "n1abc", SanitizeMermaidID("1abc"))
	assert.Equal(t, "a &amp; b&#124;c", EscapeMermaidLabel("a & b|c"))
}
