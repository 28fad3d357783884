package symbols

import (
	"sort"
	"strings"

	"github.com/panbanda/cohere/pkg/ir"
)

// Builder merges per-unit partials into a Table. It is not safe for
// concurrent use; merging is the sequential step between parallel phases.
type Builder struct {
	classes    map[string]*Declaration
	functions  map[string]*Declaration
	order      []*Declaration
	scopes     []*Scope
	duplicates []*DuplicateDeclarationError
	frozen     bool
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		classes:   make(map[string]*Declaration),
		functions: make(map[string]*Declaration),
	}
}

// Merge adds partials in stable order: by source path, then input index.
// A name collision records a DuplicateDeclarationError; the first
// declaration stays in the table. Class-likes and functions are separate
// name spaces, as in PHP, so class A\Foo and function A\Foo may coexist.
func (b *Builder) Merge(parts []*Partial) {
	if b.frozen {
		panic("symbols: merge into frozen builder")
	}

	sorted := make([]*Partial, 0, len(parts))
	for _, p := range parts {
		if p != nil {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].Index < sorted[j].Index
	})

	for _, p := range sorted {
		b.scopes = append(b.scopes, p.Scope)
		for _, d := range p.Decls {
			space := b.classes
			if d.Kind == ir.DeclFunction {
				space = b.functions
			}
			key := strings.ToLower(d.FQN)
			if first, ok := space[key]; ok {
				b.duplicates = append(b.duplicates, &DuplicateDeclarationError{
					FQN:    d.FQN,
					First:  first.Location,
					Second: d.Location,
				})
				continue
			}
			space[key] = d
			b.order = append(b.order, d)
		}
	}
}

// Freeze returns the immutable table and every duplicate found while merging.
func (b *Builder) Freeze() (*Table, []*DuplicateDeclarationError) {
	b.frozen = true
	t := &Table{
		classes:    b.classes,
		functions:  b.functions,
		order:      b.order,
		scopes:     b.scopes,
		namespaces: make(map[string]string),
	}
	for _, d := range b.order {
		for ns := d.Namespace; ns != ""; ns = ir.NamespaceOf(ns) {
			t.namespaces[strings.ToLower(ns)] = ns
		}
	}
	return t, b.duplicates
}

// Table is the read-only global symbol table.
type Table struct {
	classes   map[string]*Declaration
	functions map[string]*Declaration
	order     []*Declaration
	scopes    []*Scope

	namespaces map[string]string
}

// Namespace reports whether any declaration lives in ns or below it, and
// returns the namespace's declared spelling.
func (t *Table) Namespace(ns string) (string, bool) {
	name, ok := t.namespaces[strings.ToLower(strings.Trim(ns, `\`))]
	return name, ok
}

// Lookup finds a class, interface or trait by fully-qualified name.
func (t *Table) Lookup(fqn string) (*Declaration, bool) {
	d, ok := t.classes[strings.ToLower(strings.TrimLeft(fqn, `\`))]
	return d, ok
}

// LookupFunction finds a free function by fully-qualified name.
func (t *Table) LookupFunction(fqn string) (*Declaration, bool) {
	d, ok := t.functions[strings.ToLower(strings.TrimLeft(fqn, `\`))]
	return d, ok
}

// Declarations returns every declaration in merge order.
func (t *Table) Declarations() []*Declaration {
	return t.order
}

// ClassLikes returns classes, interfaces and traits in merge order.
func (t *Table) ClassLikes() []*Declaration {
	var out []*Declaration
	for _, d := range t.order {
		if d.Kind.IsClassLike() {
			out = append(out, d)
		}
	}
	return out
}

// Scopes returns the unit scopes in merge order.
func (t *Table) Scopes() []*Scope {
	return t.scopes
}

// Len returns the number of declarations.
func (t *Table) Len() int {
	return len(t.order)
}
