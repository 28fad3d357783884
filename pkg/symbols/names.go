package symbols

import (
	"strings"

	"github.com/panbanda/cohere/pkg/ir"
)

// ResolveClass resolves a class-like name as written inside scope. enclosing
// is the class whose body contains the reference (nil outside classes) and
// anchors self, static and parent.
//
// Lookup order: fully-qualified names resolve absolutely; otherwise the
// unit's import aliases, then the current namespace, then the global
// namespace. The first existing declaration wins.
func (t *Table) ResolveClass(scope *Scope, enclosing *Declaration, name string) (*Declaration, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	switch strings.ToLower(name) {
	case "self", "static":
		if enclosing == nil {
			return nil, false
		}
		return enclosing, true
	case "parent":
		return t.Parent(enclosing)
	}

	if strings.HasPrefix(name, `\`) {
		return t.Lookup(name)
	}

	for _, candidate := range t.classCandidates(scope, name) {
		if d, ok := t.Lookup(candidate); ok {
			return d, true
		}
	}
	return nil, false
}

// Parent resolves the parent class of d in d's own scope.
func (t *Table) Parent(d *Declaration) (*Declaration, bool) {
	if d == nil || d.Kind != ir.DeclClass || len(d.Extends) == 0 {
		return nil, false
	}
	p, ok := t.ResolveClass(d.Scope, nil, d.Extends[0])
	if !ok || p.Kind != ir.DeclClass {
		return nil, false
	}
	return p, true
}

func (t *Table) classCandidates(scope *Scope, name string) []string {
	var out []string
	if scope != nil {
		first, rest, qualified := strings.Cut(name, `\`)
		if fqn, ok := scope.ClassAlias(first); ok {
			if qualified {
				out = append(out, fqn+`\`+rest)
			} else {
				out = append(out, fqn)
			}
		}
		if scope.Namespace != "" {
			out = append(out, ir.JoinName(scope.Namespace, name))
		}
	}
	return append(out, name)
}

// ResolveFunction resolves a free function name with the same lookup order
// as ResolveClass, using `use function` aliases for unqualified names.
func (t *Table) ResolveFunction(scope *Scope, name string) (*Declaration, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	if strings.HasPrefix(name, `\`) {
		return t.LookupFunction(name)
	}

	var candidates []string
	if scope != nil {
		first, rest, qualified := strings.Cut(name, `\`)
		if qualified {
			if fqn, ok := scope.ClassAlias(first); ok {
				candidates = append(candidates, fqn+`\`+rest)
			}
		} else if fqn, ok := scope.FunctionAlias(name); ok {
			candidates = append(candidates, fqn)
		}
		if scope.Namespace != "" {
			candidates = append(candidates, ir.JoinName(scope.Namespace, name))
		}
	}
	candidates = append(candidates, name)

	for _, c := range candidates {
		if d, ok := t.LookupFunction(c); ok {
			return d, true
		}
	}
	return nil, false
}

// QualifyClass returns the name a class reference would have if it resolved,
// without requiring the declaration to exist. It is used to label unresolved
// references.
func QualifyClass(scope *Scope, name string) string {
	if strings.HasPrefix(name, `\`) {
		return strings.TrimLeft(name, `\`)
	}
	if scope == nil {
		return name
	}
	first, rest, qualified := strings.Cut(name, `\`)
	if fqn, ok := scope.ClassAlias(first); ok {
		if qualified {
			return fqn + `\` + rest
		}
		return fqn
	}
	return ir.JoinName(scope.Namespace, name)
}
