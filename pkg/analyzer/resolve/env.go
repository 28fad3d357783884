package resolve

import (
	"strings"

	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/symbols"
)

// maxEnvPasses bounds the fixpoint over chained assignments such as
// $a = new A; $b = $a->make(); $c = $b->child().
const maxEnvPasses = 4

var primitiveTypes = map[string]bool{
	"int": true, "integer": true, "float": true, "double": true, "string": true,
	"bool": true, "boolean": true, "array": true, "mixed": true, "void": true,
	"null": true, "callable": true, "iterable": true, "object": true,
	"never": true, "false": true, "true": true, "resource": true,
}

// normalizeType reduces a declared type hint to a single class name, or ""
// when the hint is primitive, a union or an intersection. Nullable forms
// (?T and T|null) keep T.
func normalizeType(hint string) string {
	hint = strings.TrimSpace(hint)
	hint = strings.TrimPrefix(hint, "?")
	if hint == "" || strings.Contains(hint, "&") {
		return ""
	}
	if strings.Contains(hint, "|") {
		var kept []string
		for _, part := range strings.Split(hint, "|") {
			part = strings.TrimSpace(part)
			if !strings.EqualFold(part, "null") {
				kept = append(kept, part)
			}
		}
		if len(kept) != 1 {
			return ""
		}
		hint = kept[0]
	}
	if primitiveTypes[strings.ToLower(hint)] {
		return ""
	}
	return hint
}

// env maps variable names to their class. A nil entry marks a variable whose
// type is unknown, either because it was never typed or because two
// assignments disagree.
type env map[string]*symbols.Declaration

func (e env) equal(o env) bool {
	if len(e) != len(o) {
		return false
	}
	for k, v := range e {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// buildEnv computes the flow-insensitive type environment of a body. $this
// and typed parameters seed it; every plain assignment to a variable must
// agree on the assigned class or the variable becomes unknown.
func (w *walker) buildEnv(body []*ir.Node, params []ir.Param) env {
	base := env{}
	if w.class != nil {
		base["this"] = w.class
	}
	for _, p := range params {
		name := strings.TrimPrefix(p.Name, "$")
		if d := w.resolveHint(p.Type, w.scope, w.class); d != nil {
			base[name] = d
		}
	}

	var assigns []*ir.Node
	for _, n := range body {
		ir.Walk(n, func(x *ir.Node) bool {
			if x.Kind == ir.NodeAssign && !x.Compound && x.Target != nil && x.Target.Kind == ir.NodeVar {
				assigns = append(assigns, x)
			}
			return true
		})
	}

	w.env = base
	for pass := 0; pass < maxEnvPasses && len(assigns) > 0; pass++ {
		next := make(env, len(base)+len(assigns))
		for k, v := range base {
			next[k] = v
		}
		for _, a := range assigns {
			name := a.Target.Name
			if name == "this" {
				continue
			}
			t := w.typeOf(a.Value)
			prev, seen := next[name]
			if !seen {
				next[name] = t
				continue
			}
			if prev != t {
				next[name] = nil
			}
		}
		done := next.equal(w.env)
		w.env = next
		if done {
			break
		}
	}
	return w.env
}

// resolveHint resolves a declared type hint to a class-like declaration.
func (w *walker) resolveHint(hint string, scope *symbols.Scope, enclosing *symbols.Declaration) *symbols.Declaration {
	name := normalizeType(hint)
	if name == "" {
		return nil
	}
	d, ok := w.table.ResolveClass(scope, enclosing, name)
	if !ok {
		return nil
	}
	return d
}

// memberType resolves a member's declared type (property type or method
// return type). static resolves to the class the member was reached through.
func (w *walker) memberType(m *symbols.Member, receiver *symbols.Declaration) *symbols.Declaration {
	name := normalizeType(m.Type)
	if name == "" {
		return nil
	}
	if strings.EqualFold(name, "static") || strings.EqualFold(name, "self") {
		return receiver
	}
	origin, ok := w.table.Lookup(m.Origin)
	if !ok {
		origin = receiver
	}
	return w.resolveHint(name, m.Scope, origin)
}

// typeOf infers the class of an expression under the current environment.
func (w *walker) typeOf(n *ir.Node) *symbols.Declaration {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ir.NodeVar:
		return w.env[n.Name]
	case ir.NodeNew:
		if d, ok := w.lookupClass(n.Class); ok {
			return d
		}
	case ir.NodeAssign:
		return w.typeOf(n.Value)
	case ir.NodeProperty:
		if recv := w.typeOf(n.Object); recv != nil {
			if m, ok := w.lookupMember(recv, symbols.MemberProperty, n.Name); ok {
				return w.memberType(m, recv)
			}
		}
	case ir.NodeStaticProperty:
		if recv := w.receiver(n); recv != nil {
			if m, ok := w.lookupMember(recv, symbols.MemberProperty, n.Name); ok {
				return w.memberType(m, recv)
			}
		}
	case ir.NodeMethodCall:
		if recv := w.typeOf(n.Object); recv != nil {
			if m, ok := w.lookupMember(recv, symbols.MemberMethod, n.Name); ok {
				return w.memberType(m, recv)
			}
		}
	case ir.NodeStaticCall:
		if recv := w.receiver(n); recv != nil {
			if m, ok := w.lookupMember(recv, symbols.MemberMethod, n.Name); ok {
				return w.memberType(m, recv)
			}
		}
	case ir.NodeFuncCall:
		if n.Name == "" {
			return nil
		}
		if f, ok := w.table.ResolveFunction(w.scope, n.Name); ok {
			return w.resolveHint(f.Decl.ReturnType, f.Scope, nil)
		}
	}
	return nil
}

// receiver returns the class a static access goes through, by name or by
// the type of its object expression.
func (w *walker) receiver(n *ir.Node) *symbols.Declaration {
	if n.Class != "" {
		d, _ := w.lookupClass(n.Class)
		return d
	}
	return w.typeOf(n.Object)
}

// lookupClass resolves a class name in the current body context.
func (w *walker) lookupClass(name string) (*symbols.Declaration, bool) {
	if name == "" {
		return nil, false
	}
	if strings.EqualFold(name, "parent") {
		return w.table.Parent(w.lexical)
	}
	return w.table.ResolveClass(w.scope, w.class, name)
}

// lookupMember finds a member in the effective member set of cls. Classes
// excluded from flattening expose only their own members.
func (w *walker) lookupMember(cls *symbols.Declaration, kind symbols.MemberKind, name string) (*symbols.Member, bool) {
	if name == "" {
		return nil, false
	}
	c, ok := w.flat.Class(cls.FQN)
	if ok && !c.Excluded {
		return c.Member(kind, name)
	}
	key := symbols.MemberKey(kind, name)
	for _, m := range cls.Members {
		if m.Key() == key {
			return m, true
		}
	}
	return nil, false
}
