package testutil

import (
	"fmt"

	"github.com/panbanda/cohere/pkg/ir"
)

// LCOMFixture is a single class whose members form five clusters:
// {publicMethod, internalMethod, publicProp, privateProp, CONSTANT_ZERO,
// CONSTANT_ONE}, {group1Method, group1Prop} and the unused singletons
// unusedMethod, unusedProp and CONSTANT_UNUSED.
func LCOMFixture() []ir.Unit {
	return []ir.Unit{{
		Path: "LCOM/CommunicationInsideClass.php",
		Decls: []ir.Decl{{
			Kind: ir.DeclClass, Name: "LCOM", Line: 3,
			Constants: []ir.Constant{
				Constant("CONSTANT_ZERO"), Constant("CONSTANT_ONE"), Constant("CONSTANT_UNUSED"),
			},
			Properties: []ir.Property{
				Property("publicProp", "int"), Property("privateProp", "int"),
				Property("unusedProp", "int"), Property("group1Prop", "int"),
			},
			Methods: []ir.Method{
				Method("publicMethod",
					Const("LCOM", "CONSTANT_ZERO"),
					ThisCall("internalMethod"),
					Assign(ThisProp("publicProp"), nil),
					Assign(ThisProp("privateProp"), nil),
				),
				Method("internalMethod",
					Const("LCOM", "CONSTANT_ONE"),
					Assign(ThisProp("privateProp"), nil),
				),
				Method("unusedMethod"),
				Method("group1Method",
					Assign(ThisProp("group1Prop"), nil),
				),
			},
		}},
	}}
}

// NamespacesFixture spreads calls over namespaces A to E so that both
// A -> B -> C -> A and A -> D -> A form namespace cycles. The call to
// GlobalFunction is the only unresolved reference.
func NamespacesFixture() []ir.Unit {
	const path = "Namespaces/A.php"
	return []ir.Unit{
		{
			Path: path, Namespace: "A",
			Decls: []ir.Decl{
				{Kind: ir.DeclClass, Name: "AClass", Methods: []ir.Method{
					StaticMethod("AMethod",
						StaticCall(`\B\BClass`, "BMethod"),
						StaticCall(`\D\DClass`, "DMethod"),
					),
				}},
				{Kind: ir.DeclFunction, Name: "AFunc", Body: []*ir.Node{
					StaticCall(`\C\CClass`, "CMethod"),
					Func(`\E\EFunc`),
				}},
			},
		},
		{
			Path: path, Namespace: "B",
			Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "BClass", Methods: []ir.Method{
				StaticMethod("BMethod", StaticCall(`\C\CClass`, "CMethod")),
			}}},
		},
		{
			Path: path, Namespace: "C",
			Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "CClass", Methods: []ir.Method{
				StaticMethod("CMethod", StaticCall(`\A\AClass`, "AMethod")),
			}}},
		},
		{
			Path: path, Namespace: "D",
			Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "DClass", Methods: []ir.Method{
				StaticMethod("DMethod", Func(`\A\AFunc`)),
			}}},
		},
		{
			Path: path, Namespace: "E",
			Decls: []ir.Decl{{Kind: ir.DeclFunction, Name: "EFunc", Body: []*ir.Node{
				StaticCall(`\C\CClass`, "CMethod"),
				Func("GlobalFunction"),
			}}},
		},
	}
}

// TraitsFixture composes two traits into MyHelloWorld.
func TraitsFixture() []ir.Unit {
	return []ir.Unit{{
		Path: "Traits/A.php",
		Decls: []ir.Decl{
			{Kind: ir.DeclTrait, Name: "Hello", Methods: []ir.Method{Method("sayHello")}},
			{Kind: ir.DeclTrait, Name: "World", Methods: []ir.Method{Method("sayWorld")}},
			{
				Kind: ir.DeclClass, Name: "MyHelloWorld",
				Traits:  []string{"Hello", "World"},
				Methods: []ir.Method{Method("sayExclamationMark")},
			},
		},
	}}
}

// ClassesFixture exercises field-level communication between classes through
// instantiation, static properties, typed parameters and typed properties.
func ClassesFixture() []ir.Unit {
	fMethod := Method("FMethod",
		Assign(Var("g"), New("G")),
		Prop(Var("g"), "gProp"),
		StaticProp("H", "hProp"),
		Prop(Var("data"), "jProp"),
		Prop(ThisProp("IProp"), "iProp"),
	)
	fMethod.Params = []ir.Param{{Name: "data", Type: "J"}}
	fMethod.ReturnType = "int"

	return []ir.Unit{{
		Path: "Classes/CommunicationBetweenClassesAtTheFieldLevel.php",
		Decls: []ir.Decl{
			{
				Kind: ir.DeclClass, Name: "F",
				Properties: []ir.Property{Property("IProp", "I")},
				Methods:    []ir.Method{fMethod, Method("FMethod2")},
			},
			{Kind: ir.DeclClass, Name: "G", Properties: []ir.Property{Property("gProp", "int")}},
			{Kind: ir.DeclClass, Name: "H", Properties: []ir.Property{{Name: "hProp", Type: "int", Static: true}}},
			{Kind: ir.DeclClass, Name: "I", Properties: []ir.Property{Property("iProp", "int")}},
			{Kind: ir.DeclClass, Name: "J", Properties: []ir.Property{Property("jProp", "int")}},
		},
	}}
}

// MethodsFixture exercises method-level communication between classes.
func MethodsFixture() []ir.Unit {
	return []ir.Unit{{
		Path: "Methods/CommunicationBetweenMethodsAtTheMethodLevel.php",
		Decls: []ir.Decl{
			{Kind: ir.DeclClass, Name: "AA", Methods: []ir.Method{Method("AAMethod",
				StaticCall("AB", "ABMethod"),
				Assign(Var("ac"), New("AC")),
				Call(Var("ac"), "ACMethod"),
				StaticCall("AD", "ADMethod"),
				Assign(Var("ae"), New("AE")),
				Call(Var("ae"), "AEMethod"),
			)}},
			{Kind: ir.DeclClass, Name: "AB", Methods: []ir.Method{StaticMethod("ABMethod",
				StaticCall("AD", "ADMethod"),
				Assign(Var("aa"), New("AA")),
				Call(Var("aa"), "AAMethod"),
			)}},
			{Kind: ir.DeclClass, Name: "AC", Methods: []ir.Method{Method("ACMethod",
				StaticCall("AB", "ABMethod"),
			)}},
			{Kind: ir.DeclClass, Name: "AD", Methods: []ir.Method{StaticMethod("ADMethod",
				Assign(Var("aa"), New("AA")),
				Call(Var("aa"), "AAMethod"),
			)}},
			{Kind: ir.DeclClass, Name: "AE", Methods: []ir.Method{Method("AEMethod",
				StaticCall("AD", "ADMethod"),
			)}},
		},
	}}
}

// RelationsFixture has two classes calling each other statically, with a
// static self-call back edge through TargetClassA.
func RelationsFixture() []ir.Unit {
	return []ir.Unit{{
		Path: "Relations/B.php",
		Decls: []ir.Decl{
			{
				Kind: ir.DeclClass, Name: "TargetClassA",
				Constants:  []ir.Constant{Constant("CONSTANT")},
				Properties: []ir.Property{Property("field", "int")},
				Methods: []ir.Method{
					StaticMethod("targetMethod1", StaticCall("TargetClassB", "targetMethod")),
					StaticMethod("targetMethod2", StaticCall("TargetClassB", "targetMethod")),
				},
			},
			{
				Kind: ir.DeclClass, Name: "TargetClassB",
				Methods: []ir.Method{StaticMethod("targetMethod",
					StaticCall("TargetClassA", "targetMethod1"),
					Assign(Var("tga"), New("TargetClassA")),
					Prop(Var("tga"), "field"),
					Const("TargetClassA", "CONSTANT"),
				)},
			},
		},
	}}
}

// SelfCallFixture is a class whose static method calls itself through self::.
func SelfCallFixture() []ir.Unit {
	return []ir.Unit{{
		Path: "SelfCall.php",
		Decls: []ir.Decl{{
			Kind: ir.DeclClass, Name: "Recursive",
			Methods: []ir.Method{
				StaticMethod("walk", StaticCall("self", "walk"), StaticCall("static", "visit")),
				StaticMethod("visit"),
				StaticMethod("alone"),
			},
		}},
	}}
}

// MeshFixture returns n classes C00..Cnn whose static m() calls m() on every
// other class, so every class pair is a two-way dependency.
func MeshFixture(n int) []ir.Unit {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("C%02d", i)
	}
	decls := make([]ir.Decl, n)
	for i, name := range names {
		var body []*ir.Node
		for j, other := range names {
			if j != i {
				body = append(body, StaticCall(other, "m"))
			}
		}
		decls[i] = ir.Decl{Kind: ir.DeclClass, Name: name, Methods: []ir.Method{StaticMethod("m", body...)}}
	}
	return []ir.Unit{{Path: "Mesh.php", Decls: decls}}
}
