// Package ir defines the language-neutral representation consumed by the
// analysis engine. Frontends lower parsed source into Units; the engine never
// sees raw syntax trees.
package ir

import (
	"encoding/json"
	"strings"

	"github.com/zeebo/blake3"
)

// DeclKind identifies the kind of a top-level declaration.
type DeclKind string

const (
	DeclClass     DeclKind = "class"
	DeclInterface DeclKind = "interface"
	DeclTrait     DeclKind = "trait"
	DeclFunction  DeclKind = "function"
)

// String returns the string representation.
func (k DeclKind) String() string {
	return string(k)
}

// IsClassLike reports whether the kind lives in the class symbol space.
func (k DeclKind) IsClassLike() bool {
	return k == DeclClass || k == DeclInterface || k == DeclTrait
}

// ImportKind distinguishes `use`, `use function` and `use const`.
type ImportKind string

const (
	ImportClass    ImportKind = "class"
	ImportFunction ImportKind = "function"
	ImportConst    ImportKind = "const"
)

// NodeKind identifies an expression node.
type NodeKind string

const (
	NodeAssign         NodeKind = "assign"
	NodeNew            NodeKind = "new"
	NodeMethodCall     NodeKind = "method_call"
	NodeStaticCall     NodeKind = "static_call"
	NodeFuncCall       NodeKind = "func_call"
	NodeProperty       NodeKind = "property"
	NodeStaticProperty NodeKind = "static_property"
	NodeClassConst     NodeKind = "class_const"
	NodeVar            NodeKind = "var"
	NodeExpr           NodeKind = "expr"
)

// Known reports whether k is one of the defined node kinds.
func (k NodeKind) Known() bool {
	switch k {
	case NodeAssign, NodeNew, NodeMethodCall, NodeStaticCall, NodeFuncCall,
		NodeProperty, NodeStaticProperty, NodeClassConst, NodeVar, NodeExpr:
		return true
	default:
		return false
	}
}

// Unit is one compilation unit: a namespace block of a single source file.
type Unit struct {
	Path      string   `json:"path"`
	Namespace string   `json:"namespace,omitempty"`
	Imports   []Import `json:"imports,omitempty"`
	Decls     []Decl   `json:"decls,omitempty"`
}

// Import is a single `use` clause.
type Import struct {
	Name  string     `json:"name"`
	Alias string     `json:"alias,omitempty"`
	Kind  ImportKind `json:"kind,omitempty"`
	Line  int        `json:"line,omitempty"`
}

// EffectiveAlias returns the alias, defaulting to the last name segment.
func (i Import) EffectiveAlias() string {
	if i.Alias != "" {
		return i.Alias
	}
	return LastSegment(i.Name)
}

// EffectiveKind returns the import kind, defaulting to class.
func (i Import) EffectiveKind() ImportKind {
	if i.Kind == "" {
		return ImportClass
	}
	return i.Kind
}

// Decl is a class, interface, trait or free function.
type Decl struct {
	Kind       DeclKind   `json:"kind"`
	Name       string     `json:"name"`
	Line       int        `json:"line,omitempty"`
	Abstract   bool       `json:"abstract,omitempty"`
	Extends    []string   `json:"extends,omitempty"`
	Implements []string   `json:"implements,omitempty"`
	Traits     []string   `json:"traits,omitempty"`
	Methods    []Method   `json:"methods,omitempty"`
	Properties []Property `json:"properties,omitempty"`
	Constants  []Constant `json:"constants,omitempty"`

	// Free functions only.
	Params     []Param `json:"params,omitempty"`
	ReturnType string  `json:"return_type,omitempty"`
	Body       []*Node `json:"body,omitempty"`
}

// Method is a method declared in a class-like body.
type Method struct {
	Name       string  `json:"name"`
	Line       int     `json:"line,omitempty"`
	Static     bool    `json:"static,omitempty"`
	Abstract   bool    `json:"abstract,omitempty"`
	Visibility string  `json:"visibility,omitempty"`
	Params     []Param `json:"params,omitempty"`
	ReturnType string  `json:"return_type,omitempty"`
	Body       []*Node `json:"body,omitempty"`
}

// Property is a declared (or constructor-promoted) property.
type Property struct {
	Name    string `json:"name"`
	Line    int    `json:"line,omitempty"`
	Static  bool   `json:"static,omitempty"`
	Type    string `json:"type,omitempty"`
	Default *Node  `json:"default,omitempty"`
}

// Constant is a class constant.
type Constant struct {
	Name  string `json:"name"`
	Line  int    `json:"line,omitempty"`
	Value *Node  `json:"value,omitempty"`
}

// Param is a function or method parameter.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Node is an expression. Which fields are meaningful depends on Kind:
//
//	assign          Target, Value, Compound
//	new             Class (empty for dynamic instantiation), Children (args)
//	method_call     Object, Name, Children (args)
//	static_call     Class or Object, Name, Children (args)
//	func_call       Name, Children (args)
//	property        Object, Name
//	static_property Class or Object, Name
//	class_const     Class or Object, Name ("class" for X::class)
//	var             Name (without the leading $)
//	expr            Children
type Node struct {
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Class    string   `json:"class,omitempty"`
	Object   *Node    `json:"object,omitempty"`
	Target   *Node    `json:"target,omitempty"`
	Value    *Node    `json:"value,omitempty"`
	Compound bool     `json:"compound,omitempty"`
	Children []*Node  `json:"children,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// Walk visits n and its sub-expressions depth-first. Returning false from fn
// skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	Walk(n.Object, fn)
	Walk(n.Target, fn)
	Walk(n.Value, fn)
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Digest returns the blake3 hash of the unit's canonical JSON encoding.
func (u *Unit) Digest() [32]byte {
	data, err := json.Marshal(u)
	if err != nil {
		return [32]byte{}
	}
	return blake3.Sum256(data)
}

// LastSegment returns the final backslash-separated segment of a name.
func LastSegment(name string) string {
	name = strings.TrimLeft(name, `\`)
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// JoinName joins a namespace and a relative name into a fully-qualified name
// without a leading backslash.
func JoinName(namespace, name string) string {
	name = strings.TrimLeft(name, `\`)
	namespace = strings.Trim(namespace, `\`)
	if namespace == "" {
		return name
	}
	return namespace + `\` + name
}

// NamespaceOf returns the namespace part of a fully-qualified name.
func NamespaceOf(fqn string) string {
	fqn = strings.TrimLeft(fqn, `\`)
	if i := strings.LastIndexByte(fqn, '\\'); i >= 0 {
		return fqn[:i]
	}
	return ""
}
