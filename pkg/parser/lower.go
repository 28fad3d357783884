package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/panbanda/cohere/pkg/ir"
	sitter "github.com/smacker/go-tree-sitter"
)

// transparent node types are statement and grouping wrappers whose lowered
// children are spliced into the enclosing list.
var transparent = map[string]bool{
	"compound_statement":       true,
	"expression_statement":     true,
	"parenthesized_expression": true,
	"arguments":                true,
	"argument":                 true,
	"return_statement":         true,
	"echo_statement":           true,
	"text_interpolation":       true,
}

// declarationTypes are skipped inside bodies; nested declarations are
// collected at statement level only.
var declarationTypes = map[string]bool{
	"class_declaration":     true,
	"interface_declaration": true,
	"trait_declaration":     true,
	"enum_declaration":      true,
	"function_definition":   true,
}

// Lower converts a PHP parse tree into compilation units, one per namespace
// block. Code outside any namespace forms a unit with an empty namespace.
// Units without declarations or imports are dropped.
func Lower(result *ParseResult) ([]ir.Unit, error) {
	if result == nil || result.Tree == nil {
		return nil, errors.New("lower: nil parse result")
	}
	if result.Language != LangPHP {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, result.Language)
	}

	l := &lowerer{src: result.Source, path: result.Path}
	l.program(result.Tree.RootNode())

	units := make([]ir.Unit, 0, len(l.units))
	for _, u := range l.units {
		if len(u.Decls) > 0 || len(u.Imports) > 0 {
			units = append(units, *u)
		}
	}
	return units, nil
}

type lowerer struct {
	src   []byte
	path  string
	units []*ir.Unit
}

func (l *lowerer) open(namespace string) *ir.Unit {
	u := &ir.Unit{Path: l.path, Namespace: strings.Trim(namespace, `\`)}
	l.units = append(l.units, u)
	return u
}

func (l *lowerer) text(n *sitter.Node) string {
	return strings.TrimSpace(GetNodeText(n, l.src))
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (l *lowerer) program(root *sitter.Node) {
	cur := l.open("")
	global := cur
	for i := range int(root.NamedChildCount()) {
		c := root.NamedChild(i)
		if c.Type() != "namespace_definition" {
			l.statement(cur, c)
			continue
		}
		name := l.text(c.ChildByFieldName("name"))
		body := c.ChildByFieldName("body")
		if body == nil {
			// namespace Foo; applies until the next namespace statement.
			cur = l.open(name)
			continue
		}
		u := l.open(name)
		for j := range int(body.NamedChildCount()) {
			l.statement(u, body.NamedChild(j))
		}
		cur = global
	}
}

// statement collects imports and declarations. Other statements are
// searched for conditionally declared classes and functions.
func (l *lowerer) statement(u *ir.Unit, n *sitter.Node) {
	switch n.Type() {
	case "namespace_use_declaration":
		u.Imports = append(u.Imports, l.imports(n)...)
	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
		u.Decls = append(u.Decls, l.classLike(n))
	case "function_definition":
		u.Decls = append(u.Decls, l.function(n))
	default:
		for i := range int(n.NamedChildCount()) {
			l.statement(u, n.NamedChild(i))
		}
	}
}

func (l *lowerer) imports(n *sitter.Node) []ir.Import {
	var kind ir.ImportKind
	var prefix string
	var out []ir.Import
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		switch c.Type() {
		case "function":
			kind = ir.ImportFunction
		case "const":
			kind = ir.ImportConst
		case "namespace_name":
			prefix = l.text(c)
		case "namespace_use_clause":
			out = append(out, l.useClause(c, "", kind))
		case "namespace_use_group":
			for j := range int(c.NamedChildCount()) {
				g := c.NamedChild(j)
				if g.Type() == "namespace_use_group_clause" || g.Type() == "namespace_use_clause" {
					out = append(out, l.useClause(g, prefix, kind))
				}
			}
		}
	}
	return out
}

func (l *lowerer) useClause(c *sitter.Node, prefix string, kind ir.ImportKind) ir.Import {
	imp := ir.Import{Kind: kind, Line: line(c)}
	afterAs := false
	for i := range int(c.ChildCount()) {
		k := c.Child(i)
		switch k.Type() {
		case "function":
			imp.Kind = ir.ImportFunction
		case "const":
			imp.Kind = ir.ImportConst
		case "as":
			afterAs = true
		case "namespace_aliasing_clause":
			for j := range int(k.NamedChildCount()) {
				if a := k.NamedChild(j); a.Type() == "name" {
					imp.Alias = l.text(a)
				}
			}
		case "name", "qualified_name", "namespace_name":
			if afterAs {
				imp.Alias = l.text(k)
			} else if imp.Name == "" {
				imp.Name = l.text(k)
			}
		}
	}
	if alias := c.ChildByFieldName("alias"); alias != nil {
		imp.Alias = l.text(alias)
	}
	imp.Name = strings.TrimLeft(imp.Name, `\`)
	if prefix != "" {
		imp.Name = strings.Trim(prefix, `\`) + `\` + imp.Name
	}
	return imp
}

func (l *lowerer) names(n *sitter.Node) []string {
	var out []string
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if c.Type() == "name" || c.Type() == "qualified_name" {
			out = append(out, l.text(c))
		}
	}
	return out
}

func (l *lowerer) classLike(n *sitter.Node) ir.Decl {
	d := ir.Decl{Name: l.text(n.ChildByFieldName("name")), Line: line(n)}
	switch n.Type() {
	case "interface_declaration":
		d.Kind = ir.DeclInterface
	case "trait_declaration":
		d.Kind = ir.DeclTrait
	default:
		d.Kind = ir.DeclClass
	}

	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		switch c.Type() {
		case "abstract_modifier":
			d.Abstract = true
		case "base_clause":
			d.Extends = l.names(c)
		case "class_interface_clause":
			d.Implements = l.names(c)
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		l.members(&d, body)
	}
	return d
}

func (l *lowerer) members(d *ir.Decl, body *sitter.Node) {
	for i := range int(body.NamedChildCount()) {
		m := body.NamedChild(i)
		switch m.Type() {
		case "method_declaration":
			method, promoted := l.method(m)
			d.Methods = append(d.Methods, method)
			d.Properties = append(d.Properties, promoted...)
		case "property_declaration":
			d.Properties = append(d.Properties, l.properties(m)...)
		case "const_declaration":
			d.Constants = append(d.Constants, l.constants(m)...)
		case "use_declaration":
			d.Traits = append(d.Traits, l.names(m)...)
		case "enum_case":
			name := m.ChildByFieldName("name")
			if name == nil && m.NamedChildCount() > 0 {
				name = m.NamedChild(0)
			}
			d.Constants = append(d.Constants, ir.Constant{Name: l.text(name), Line: line(m)})
		}
	}
}

func (l *lowerer) method(n *sitter.Node) (ir.Method, []ir.Property) {
	m := ir.Method{
		Name:       l.text(n.ChildByFieldName("name")),
		Line:       line(n),
		Visibility: "public",
		ReturnType: l.text(n.ChildByFieldName("return_type")),
	}
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		switch c.Type() {
		case "visibility_modifier":
			m.Visibility = strings.ToLower(l.text(c))
		case "static_modifier":
			m.Static = true
		case "abstract_modifier":
			m.Abstract = true
		}
	}

	var promoted []ir.Property
	m.Params, promoted = l.params(n.ChildByFieldName("parameters"))
	if body := n.ChildByFieldName("body"); body != nil {
		m.Body = l.list(body)
	}
	return m, promoted
}

// params lowers formal parameters. Constructor-promoted parameters are also
// returned as properties.
func (l *lowerer) params(n *sitter.Node) ([]ir.Param, []ir.Property) {
	if n == nil {
		return nil, nil
	}
	var params []ir.Param
	var promoted []ir.Property
	for i := range int(n.NamedChildCount()) {
		p := n.NamedChild(i)
		switch p.Type() {
		case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		default:
			continue
		}
		name := strings.TrimPrefix(l.text(variable(p.ChildByFieldName("name"))), "$")
		typ := l.text(p.ChildByFieldName("type"))
		params = append(params, ir.Param{Name: name, Type: typ})
		if p.Type() == "property_promotion_parameter" {
			promoted = append(promoted, ir.Property{
				Name:    name,
				Line:    line(p),
				Type:    typ,
				Default: l.expr(p.ChildByFieldName("default_value")),
			})
		}
	}
	return params, promoted
}

// variable unwraps by-reference parameters (&$x) to their variable name.
func variable(n *sitter.Node) *sitter.Node {
	if n == nil || n.Type() == "variable_name" {
		return n
	}
	for i := range int(n.NamedChildCount()) {
		if c := n.NamedChild(i); c.Type() == "variable_name" {
			return c
		}
	}
	return n
}

func (l *lowerer) properties(n *sitter.Node) []ir.Property {
	var static bool
	typ := l.text(n.ChildByFieldName("type"))
	var out []ir.Property
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		switch c.Type() {
		case "static_modifier":
			static = true
		case "property_element":
			p := ir.Property{Line: line(c), Type: typ}
			var def *sitter.Node
			for j := range int(c.NamedChildCount()) {
				k := c.NamedChild(j)
				switch {
				case k.Type() == "variable_name" && p.Name == "":
					p.Name = strings.TrimPrefix(l.text(k), "$")
				case k.Type() == "property_initializer":
					if k.NamedChildCount() > 0 {
						def = k.NamedChild(0)
					}
				case p.Name != "" && def == nil:
					def = k
				}
			}
			if v := c.ChildByFieldName("default_value"); v != nil {
				def = v
			}
			p.Default = l.expr(def)
			out = append(out, p)
		}
	}
	for i := range out {
		out[i].Static = static
	}
	return out
}

func (l *lowerer) constants(n *sitter.Node) []ir.Constant {
	var out []ir.Constant
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if c.Type() != "const_element" || c.NamedChildCount() == 0 {
			continue
		}
		k := ir.Constant{Name: l.text(c.NamedChild(0)), Line: line(c)}
		if cnt := int(c.NamedChildCount()); cnt > 1 {
			k.Value = l.expr(c.NamedChild(cnt - 1))
		}
		out = append(out, k)
	}
	return out
}

func (l *lowerer) function(n *sitter.Node) ir.Decl {
	d := ir.Decl{
		Kind:       ir.DeclFunction,
		Name:       l.text(n.ChildByFieldName("name")),
		Line:       line(n),
		ReturnType: l.text(n.ChildByFieldName("return_type")),
	}
	d.Params, _ = l.params(n.ChildByFieldName("parameters"))
	if body := n.ChildByFieldName("body"); body != nil {
		d.Body = l.list(body)
	}
	return d
}

// list lowers the named children of n.
func (l *lowerer) list(n *sitter.Node) []*ir.Node {
	if n == nil {
		return nil
	}
	var out []*ir.Node
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if transparent[c.Type()] {
			out = append(out, l.list(c)...)
			continue
		}
		if x := l.expr(c); x != nil {
			out = append(out, x)
		}
	}
	return out
}

// expr lowers one syntax node. Constructs without a dedicated IR kind
// become expr containers of their lowered children, or nil when nothing
// inside them references anything.
func (l *lowerer) expr(n *sitter.Node) *ir.Node {
	if n == nil {
		return nil
	}
	t := n.Type()
	switch t {
	case "variable_name":
		return &ir.Node{Kind: ir.NodeVar, Name: strings.TrimPrefix(l.text(n), "$"), Line: line(n)}
	case "assignment_expression", "reference_assignment_expression":
		return l.assign(n, false)
	case "augmented_assignment_expression":
		return l.assign(n, true)
	case "object_creation_expression":
		return l.instantiation(n)
	case "member_call_expression", "nullsafe_member_call_expression":
		return l.methodCall(n)
	case "scoped_call_expression":
		x := &ir.Node{Kind: ir.NodeStaticCall, Line: line(n)}
		l.scope(x, n.ChildByFieldName("scope"))
		x.Name = l.identifier(n.ChildByFieldName("name"))
		x.Children = l.list(n.ChildByFieldName("arguments"))
		return x
	case "function_call_expression":
		return l.funcCall(n)
	case "member_access_expression", "nullsafe_member_access_expression":
		return &ir.Node{
			Kind:   ir.NodeProperty,
			Object: orEmpty(l.expr(n.ChildByFieldName("object")), n),
			Name:   l.identifier(n.ChildByFieldName("name")),
			Line:   line(n),
		}
	case "scoped_property_access_expression":
		x := &ir.Node{Kind: ir.NodeStaticProperty, Line: line(n)}
		l.scope(x, n.ChildByFieldName("scope"))
		x.Name = strings.TrimPrefix(l.text(n.ChildByFieldName("name")), "$")
		return x
	case "class_constant_access_expression":
		if n.NamedChildCount() >= 2 {
			x := &ir.Node{Kind: ir.NodeClassConst, Line: line(n)}
			l.scope(x, n.NamedChild(0))
			x.Name = l.text(n.NamedChild(int(n.NamedChildCount()) - 1))
			return x
		}
	case "anonymous_class":
		return nil
	}
	if declarationTypes[t] {
		return nil
	}

	kids := l.list(n)
	switch {
	case len(kids) == 0:
		return nil
	case len(kids) == 1 && transparent[t]:
		return kids[0]
	}
	return &ir.Node{Kind: ir.NodeExpr, Children: kids, Line: line(n)}
}

func (l *lowerer) assign(n *sitter.Node, compound bool) *ir.Node {
	target := l.expr(n.ChildByFieldName("left"))
	value := l.expr(n.ChildByFieldName("right"))
	if target == nil {
		if value == nil {
			return nil
		}
		return &ir.Node{Kind: ir.NodeExpr, Children: []*ir.Node{value}, Line: line(n)}
	}
	return &ir.Node{Kind: ir.NodeAssign, Target: target, Value: value, Compound: compound, Line: line(n)}
}

func (l *lowerer) instantiation(n *sitter.Node) *ir.Node {
	x := &ir.Node{Kind: ir.NodeNew, Line: line(n)}
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		switch c.Type() {
		case "arguments":
			x.Children = l.list(c)
		case "anonymous_class":
			// new class(...) { ... } has no named target.
			args := l.list(c.ChildByFieldName("arguments"))
			if len(args) == 0 {
				return nil
			}
			return &ir.Node{Kind: ir.NodeExpr, Children: args, Line: line(n)}
		case "name", "qualified_name", "relative_scope":
			x.Class = l.text(c)
		case "attribute_list":
		default:
			if x.Class == "" && x.Object == nil {
				x.Object = l.expr(c)
			}
		}
	}
	return x
}

func (l *lowerer) methodCall(n *sitter.Node) *ir.Node {
	return &ir.Node{
		Kind:     ir.NodeMethodCall,
		Object:   orEmpty(l.expr(n.ChildByFieldName("object")), n),
		Name:     l.identifier(n.ChildByFieldName("name")),
		Children: l.list(n.ChildByFieldName("arguments")),
		Line:     line(n),
	}
}

func (l *lowerer) funcCall(n *sitter.Node) *ir.Node {
	fn := n.ChildByFieldName("function")
	x := &ir.Node{Kind: ir.NodeFuncCall, Children: l.list(n.ChildByFieldName("arguments")), Line: line(n)}
	if fn != nil && (fn.Type() == "name" || fn.Type() == "qualified_name") {
		x.Name = l.text(fn)
	} else {
		x.Object = l.expr(fn)
	}
	return x
}

// scope fills the class side of a static access: a class name, a relative
// scope keyword, or an expression for $obj::member.
func (l *lowerer) scope(x *ir.Node, s *sitter.Node) {
	if s == nil {
		return
	}
	switch s.Type() {
	case "name", "qualified_name", "relative_scope":
		x.Class = l.text(s)
	default:
		x.Object = orEmpty(l.expr(s), s)
	}
}

// identifier returns the text of a static member name, or "" when the name
// is computed at runtime.
func (l *lowerer) identifier(n *sitter.Node) string {
	if n == nil || n.Type() != "name" {
		return ""
	}
	return l.text(n)
}

// orEmpty substitutes an empty container for receivers that lower to
// nothing, such as literals, so the access stays an unknown reference.
func orEmpty(x *ir.Node, n *sitter.Node) *ir.Node {
	if x != nil {
		return x
	}
	return &ir.Node{Kind: ir.NodeExpr, Line: line(n)}
}
