package resolve

import (
	"context"
	"testing"

	"github.com/panbanda/cohere/pkg/analyzer/flatten"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/symbols"
	"github.com/panbanda/cohere/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, units []ir.Unit, opts ...Option) *Result {
	t.Helper()
	parts := make([]*symbols.Partial, len(units))
	for i := range units {
		parts[i] = symbols.CollectUnit(i, &units[i])
	}
	b := symbols.NewBuilder()
	b.Merge(parts)
	tbl, dups := b.Freeze()
	require.Empty(t, dups)
	flat := flatten.New().Flatten(context.Background(), tbl)
	return New(opts...).Resolve(context.Background(), tbl, flat)
}

// from returns the references whose source member (or declaration, when
// member is empty) matches.
func from(res *Result, decl, member string) []Reference {
	var out []Reference
	for _, r := range res.References {
		if r.Source.Decl == decl && r.Source.Member == member {
			out = append(out, r)
		}
	}
	return out
}

type edge struct {
	kind   Kind
	target string
}

func edges(refs []Reference) []edge {
	out := make([]edge, len(refs))
	for i, r := range refs {
		target := r.Target.Member
		switch r.Target.Kind {
		case TargetDecl:
			target = r.Target.Decl
		case TargetNamespace:
			target = "ns:" + r.Target.Namespace
		case TargetUnknown:
			target = "?" + r.Target.Name
		}
		out[i] = edge{r.Kind, target}
	}
	return out
}

func TestResolve_Namespaces(t *testing.T) {
	res := run(t, testutil.NamespacesFixture())

	assert.Equal(t, 1, res.Unresolved)
	assert.Empty(t, res.Malformed)

	var unresolved []Reference
	for _, r := range res.References {
		if !r.Resolved() {
			unresolved = append(unresolved, r)
		}
	}
	require.Len(t, unresolved, 1)
	assert.Equal(t, "GlobalFunction()", unresolved[0].Target.Name)
	assert.Equal(t, `E\EFunc`, unresolved[0].Source.Decl)

	assert.Equal(t, []edge{
		{KindStaticCall, `B\BClass::BMethod()`},
		{KindStaticCall, `D\DClass::DMethod()`},
	}, edges(from(res, `A\AClass`, `A\AClass::AMethod()`)))

	assert.Equal(t, []edge{
		{KindStaticCall, `C\CClass::CMethod()`},
		{KindCall, `E\EFunc`},
	}, edges(from(res, `A\AFunc`, "")))
}

func TestResolve_FieldLevelTyping(t *testing.T) {
	res := run(t, testutil.ClassesFixture())

	assert.Equal(t, 0, res.Unresolved)
	assert.Equal(t, []edge{
		{KindInstantiation, "G"},
		{KindPropertyRead, "G::$gProp"},
		{KindStaticPropertyAccess, "H::$hProp"},
		{KindPropertyRead, "J::$jProp"},
		{KindPropertyRead, "F::$IProp"},
		{KindPropertyRead, "I::$iProp"},
	}, edges(from(res, "F", "F::FMethod()")))
}

func TestResolve_MethodLevelTyping(t *testing.T) {
	res := run(t, testutil.MethodsFixture())

	assert.Equal(t, 0, res.Unresolved)
	assert.Equal(t, []edge{
		{KindStaticCall, "AB::ABMethod()"},
		{KindInstantiation, "AC"},
		{KindCall, "AC::ACMethod()"},
		{KindStaticCall, "AD::ADMethod()"},
		{KindInstantiation, "AE"},
		{KindCall, "AE::AEMethod()"},
	}, edges(from(res, "AA", "AA::AAMethod()")))
}

func TestResolve_LookupOrder(t *testing.T) {
	units := []ir.Unit{
		{Path: "lib.php", Namespace: `Lib`, Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "Thing"}}},
		{Path: "app.php", Namespace: "App", Decls: []ir.Decl{
			{Kind: ir.DeclClass, Name: "Thing"},
			{Kind: ir.DeclClass, Name: "Other"},
		}},
		{Path: "global.php", Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "Helper"}}},
		{
			Path: "use.php", Namespace: "App",
			Imports: []ir.Import{{Name: `Lib\Thing`}},
			Decls: []ir.Decl{{Kind: ir.DeclFunction, Name: "run", Body: []*ir.Node{
				testutil.New("Thing"),
				testutil.New(`\App\Thing`),
				testutil.New("Other"),
				testutil.New("Helper"),
				testutil.New("Missing"),
			}}},
		},
	}
	res := run(t, units)

	assert.Equal(t, []edge{
		{KindInstantiation, `Lib\Thing`},
		{KindInstantiation, `App\Thing`},
		{KindInstantiation, `App\Other`},
		{KindInstantiation, "Helper"},
		{KindInstantiation, `?App\Missing`},
	}, edges(from(res, `App\run`, "")))
	assert.Equal(t, 1, res.Unresolved)
}

func TestResolve_ImportIsLexicallyScoped(t *testing.T) {
	units := []ir.Unit{
		{Path: "lib.php", Namespace: "Lib", Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "Client"}}},
		{Path: "a.php", Namespace: "App", Imports: []ir.Import{{Name: `Lib\Client`}}},
		{Path: "b.php", Namespace: "App", Decls: []ir.Decl{{Kind: ir.DeclFunction, Name: "f", Body: []*ir.Node{
			testutil.New("Client"),
		}}}},
	}
	res := run(t, units)

	assert.Equal(t, []edge{{KindInstantiation, `?App\Client`}}, edges(from(res, `App\f`, "")))
	assert.Equal(t, []edge{{KindNamespaceUse, `Lib\Client`}}, edges(from(res, "", "")))
}

func TestResolve_NamespaceImports(t *testing.T) {
	units := []ir.Unit{
		{Path: "lib.php", Namespace: `Vendor\Lib`, Decls: []ir.Decl{
			{Kind: ir.DeclFunction, Name: "helper"},
		}},
		{Path: "a.php", Namespace: "App", Imports: []ir.Import{
			{Name: `Vendor\Lib`},
			{Name: `Vendor\Lib\helper`, Kind: ir.ImportFunction},
			{Name: `Vendor\Lib\LIMIT`, Kind: ir.ImportConst},
			{Name: `Nowhere\Thing`},
		}},
	}
	res := run(t, units)

	refs := from(res, "", "")
	assert.Equal(t, []edge{
		{KindNamespaceUse, `ns:Vendor\Lib`},
		{KindNamespaceUse, `Vendor\Lib\helper`},
		{KindNamespaceUse, `ns:Vendor\Lib`},
		{KindNamespaceUse, `?Nowhere\Thing`},
	}, edges(refs))
	for _, r := range refs {
		assert.Equal(t, "App", r.Source.Namespace)
	}
	assert.Equal(t, 1, res.Unresolved)
}

func TestResolve_RelativeScopes(t *testing.T) {
	units := []ir.Unit{{
		Path: "a.php",
		Decls: []ir.Decl{
			{Kind: ir.DeclClass, Name: "Base", Methods: []ir.Method{testutil.StaticMethod("boot")}},
			{Kind: ir.DeclClass, Name: "Child", Extends: []string{"Base"}, Methods: []ir.Method{
				testutil.StaticMethod("make",
					testutil.StaticCall("self", "other"),
					testutil.StaticCall("static", "other"),
					testutil.StaticCall("parent", "boot"),
					testutil.New("static"),
				),
				testutil.StaticMethod("other"),
			}},
		},
	}}
	res := run(t, units)

	assert.Equal(t, []edge{
		{KindStaticCall, "Child::other()"},
		{KindStaticCall, "Child::other()"},
		{KindStaticCall, "Base::boot()"},
		{KindInstantiation, "Child"},
	}, edges(from(res, "Child", "Child::make()")))
	assert.Equal(t, []edge{{KindInheritance, "Base"}}, edges(from(res, "Child", "")))
}

func TestResolve_IncompatibleReassignmentIsUnknown(t *testing.T) {
	units := []ir.Unit{{
		Path: "a.php",
		Decls: []ir.Decl{
			{Kind: ir.DeclClass, Name: "A", Methods: []ir.Method{testutil.Method("run")}},
			{Kind: ir.DeclClass, Name: "B", Methods: []ir.Method{testutil.Method("run")}},
			{Kind: ir.DeclFunction, Name: "f", Body: []*ir.Node{
				testutil.Assign(testutil.Var("x"), testutil.New("A")),
				testutil.Assign(testutil.Var("x"), testutil.New("B")),
				testutil.Call(testutil.Var("x"), "run"),
				testutil.Assign(testutil.Var("y"), testutil.New("A")),
				testutil.Assign(testutil.Var("y"), testutil.New("A")),
				testutil.Call(testutil.Var("y"), "run"),
			}},
		},
	}}
	res := run(t, units)

	assert.Equal(t, []edge{
		{KindInstantiation, "A"},
		{KindInstantiation, "B"},
		{KindCall, "?->run()"},
		{KindInstantiation, "A"},
		{KindInstantiation, "A"},
		{KindCall, "A::run()"},
	}, edges(from(res, "f", "")))
	assert.Equal(t, 1, res.Unresolved)
}

func TestResolve_ChainedTyping(t *testing.T) {
	factory := testutil.Method("make")
	factory.ReturnType = "?Product"
	units := []ir.Unit{{
		Path: "a.php", Namespace: "Shop",
		Decls: []ir.Decl{
			{Kind: ir.DeclClass, Name: "Factory", Methods: []ir.Method{factory}},
			{Kind: ir.DeclClass, Name: "Product", Methods: []ir.Method{testutil.Method("price")}},
			{Kind: ir.DeclFunction, Name: "f", Params: []ir.Param{{Name: "factory", Type: "Factory"}}, Body: []*ir.Node{
				testutil.Assign(testutil.Var("p"), testutil.Call(testutil.Var("factory"), "make")),
				testutil.Call(testutil.Var("p"), "price"),
			}},
		},
	}}
	res := run(t, units)

	assert.Equal(t, []edge{
		{KindCall, `Shop\Factory::make()`},
		{KindCall, `Shop\Product::price()`},
	}, edges(from(res, `Shop\f`, "")))
}

func TestResolve_TraitMembersResolveInClassContext(t *testing.T) {
	units := []ir.Unit{{
		Path: "a.php",
		Decls: []ir.Decl{
			{Kind: ir.DeclTrait, Name: "Counts", Methods: []ir.Method{
				testutil.Method("inc", testutil.Assign(testutil.ThisProp("count"), nil)),
			}},
			{Kind: ir.DeclClass, Name: "Counter", Traits: []string{"Counts"},
				Properties: []ir.Property{testutil.Property("count", "int")},
			},
		},
	}}
	res := run(t, units)

	assert.Empty(t, from(res, "Counts", "Counts::inc()"), "standalone trait bodies are not walked")
	refs := from(res, "Counter", "Counter::inc()")
	assert.Equal(t, []edge{{KindPropertyWrite, "Counter::$count"}}, edges(refs))
	assert.False(t, refs[0].Inherited)
	assert.Equal(t, []edge{{KindTraitUse, "Counts"}}, edges(from(res, "Counter", "")))
}

func TestResolve_InheritedCopiesAreTagged(t *testing.T) {
	units := []ir.Unit{{
		Path: "a.php",
		Decls: []ir.Decl{
			{Kind: ir.DeclClass, Name: "Base",
				Properties: []ir.Property{testutil.Property("id", "int")},
				Methods:    []ir.Method{testutil.Method("save", testutil.ThisProp("id"))},
			},
			{Kind: ir.DeclClass, Name: "User", Extends: []string{"Base"}},
		},
	}}
	res := run(t, units)

	base := from(res, "Base", "Base::save()")
	require.Len(t, base, 1)
	assert.False(t, base[0].Inherited)

	user := from(res, "User", "User::save()")
	require.Len(t, user, 1)
	assert.True(t, user[0].Inherited)
	assert.Equal(t, "User::$id", user[0].Target.Member)
}

func TestResolve_CompoundAssignmentReadsAndWrites(t *testing.T) {
	units := []ir.Unit{{
		Path: "a.php",
		Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "C",
			Properties: []ir.Property{testutil.Property("n", "int")},
			Methods: []ir.Method{testutil.Method("bump",
				&ir.Node{Kind: ir.NodeAssign, Compound: true, Target: testutil.ThisProp("n")},
			)},
		}},
	}}
	res := run(t, units)

	assert.Equal(t, []edge{
		{KindPropertyRead, "C::$n"},
		{KindPropertyWrite, "C::$n"},
	}, edges(from(res, "C", "C::bump()")))
}

func TestResolve_ClassConstants(t *testing.T) {
	units := []ir.Unit{{
		Path: "a.php",
		Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "C",
			Constants: []ir.Constant{{Name: "A"}, {Name: "B", Value: testutil.Const("self", "A")}},
			Methods: []ir.Method{testutil.Method("name",
				testutil.Const("C", "class"),
				testutil.Const("C", "MISSING"),
			)},
		}},
	}}
	res := run(t, units)

	assert.Equal(t, []edge{{KindConstantAccess, "C::A"}}, edges(from(res, "C", "C::B")))
	name := from(res, "C", "C::name()")
	assert.Equal(t, []edge{
		{KindConstantAccess, "C"},
		{KindConstantAccess, "?C::MISSING"},
	}, edges(name))
	assert.Equal(t, "C", name[1].Target.Decl)
	assert.Equal(t, 1, res.Unresolved)
}

func TestResolve_MalformedInput(t *testing.T) {
	units := []ir.Unit{{
		Path: "a.php",
		Decls: []ir.Decl{{Kind: ir.DeclFunction, Name: "f", Line: 4, Body: []*ir.Node{
			{Kind: "goto", Line: 5, Children: []*ir.Node{testutil.Func("f")}},
			{Kind: ir.NodeMethodCall, Name: "x", Line: 6},
			{Kind: ir.NodeAssign, Line: 7},
		}}},
	}}
	res := run(t, units)

	require.Len(t, res.Malformed, 3)
	assert.Equal(t, 5, res.Malformed[0].Line)
	assert.Contains(t, res.Malformed[0].Error(), `unknown node kind "goto"`)
	assert.Equal(t, 0, res.Unresolved)

	refs := from(res, "f", "")
	require.Len(t, refs, 4)
	assert.False(t, refs[0].Resolved())
	assert.Equal(t, edge{KindCall, "f"}, edges(refs)[1], "children of malformed nodes are still resolved")
}

func TestResolve_Externals(t *testing.T) {
	units := []ir.Unit{{
		Path: "a.php", Namespace: "App",
		Decls: []ir.Decl{{Kind: ir.DeclFunction, Name: "f", Body: []*ir.Node{
			testutil.Func("strlen"),
			testutil.New(`\Exception`),
			testutil.StaticCall("Carbon", "now"),
		}}},
	}}

	res := run(t, units)
	assert.Equal(t, 3, res.Unresolved)

	res = run(t, units, WithBuiltins(), WithExternals([]string{`App\Carbon`}))
	assert.Equal(t, 0, res.Unresolved)
	assert.Empty(t, from(res, `App\f`, ""))
}

func TestResolve_Deterministic(t *testing.T) {
	units := append(testutil.NamespacesFixture(), testutil.MethodsFixture()...)
	first := run(t, units, WithWorkers(1))
	for i := 0; i < 5; i++ {
		again := run(t, units, WithWorkers(16))
		require.Equal(t, first.References, again.References)
		require.Equal(t, first.Unresolved, again.Unresolved)
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Foo", "Foo"},
		{"?Foo", "Foo"},
		{`\App\Foo|null`, `\App\Foo`},
		{"int", ""},
		{"Foo|Bar", ""},
		{"Foo&Bar", ""},
		{"", ""},
		{"static", "static"},
	}
	for _, tt := range tests {
		if got := normalizeType(tt.in); got != tt.want {
			t.Errorf("normalizeType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
