// Package testutil provides IR builders and fixture programs for tests.
package testutil

import "github.com/panbanda/cohere/pkg/ir"

// This returns the $this variable.
func This() *ir.Node {
	return &ir.Node{Kind: ir.NodeVar, Name: "this"}
}

// Var returns a variable reference.
func Var(name string) *ir.Node {
	return &ir.Node{Kind: ir.NodeVar, Name: name}
}

// Prop returns a property fetch on obj.
func Prop(obj *ir.Node, name string) *ir.Node {
	return &ir.Node{Kind: ir.NodeProperty, Object: obj, Name: name}
}

// ThisProp returns $this->name.
func ThisProp(name string) *ir.Node {
	return Prop(This(), name)
}

// Call returns a method call on obj.
func Call(obj *ir.Node, name string, args ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.NodeMethodCall, Object: obj, Name: name, Children: args}
}

// ThisCall returns $this->name(args).
func ThisCall(name string, args ...*ir.Node) *ir.Node {
	return Call(This(), name, args...)
}

// StaticCall returns Class::name(args).
func StaticCall(class, name string, args ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.NodeStaticCall, Class: class, Name: name, Children: args}
}

// StaticProp returns Class::$name.
func StaticProp(class, name string) *ir.Node {
	return &ir.Node{Kind: ir.NodeStaticProperty, Class: class, Name: name}
}

// Const returns Class::NAME.
func Const(class, name string) *ir.Node {
	return &ir.Node{Kind: ir.NodeClassConst, Class: class, Name: name}
}

// New returns new Class(args).
func New(class string, args ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.NodeNew, Class: class, Children: args}
}

// Func returns a free function call.
func Func(name string, args ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.NodeFuncCall, Name: name, Children: args}
}

// Assign returns target = value.
func Assign(target, value *ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.NodeAssign, Target: target, Value: value}
}

// Expr wraps sub-expressions in a generic container.
func Expr(children ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.NodeExpr, Children: children}
}

// Method builds a method declaration.
func Method(name string, body ...*ir.Node) ir.Method {
	return ir.Method{Name: name, Visibility: "public", Body: body}
}

// StaticMethod builds a static method declaration.
func StaticMethod(name string, body ...*ir.Node) ir.Method {
	m := Method(name, body...)
	m.Static = true
	return m
}

// Property builds a property declaration.
func Property(name, typ string) ir.Property {
	return ir.Property{Name: name, Type: typ}
}

// Constant builds a class constant.
func Constant(name string) ir.Constant {
	return ir.Constant{Name: name}
}
