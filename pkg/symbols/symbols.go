// Package symbols collects declarations from lowered units into an immutable,
// case-insensitive symbol table keyed by fully-qualified name.
package symbols

import (
	"fmt"
	"strings"

	"github.com/panbanda/cohere/pkg/ir"
)

// Location is a source position.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

func (l Location) String() string {
	if l.Line == 0 {
		return l.Path
	}
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// MemberKind identifies a class member.
type MemberKind string

const (
	MemberMethod   MemberKind = "method"
	MemberProperty MemberKind = "property"
	MemberConstant MemberKind = "constant"
)

// Member is a method, property or class constant.
//
// Owner is the declaration whose effective member set contains the member.
// Origin is the declaration that wrote it; it differs from Owner only for
// members copied in from a trait or a parent class.
type Member struct {
	Kind       MemberKind `json:"kind"`
	Name       string     `json:"name"`
	Owner      string     `json:"owner"`
	Origin     string     `json:"origin"`
	Static     bool       `json:"static,omitempty"`
	Abstract   bool       `json:"abstract,omitempty"`
	Visibility string     `json:"visibility,omitempty"`
	Type       string     `json:"type,omitempty"`
	Location   Location   `json:"location"`

	// Inherited marks members copied from a parent class (not from a trait).
	Inherited bool `json:"inherited,omitempty"`

	// Scope is the unit scope the member's body was written in.
	Scope *Scope `json:"-"`

	Method   *ir.Method   `json:"-"`
	Property *ir.Property `json:"-"`
	Constant *ir.Constant `json:"-"`
}

// Key returns the member's identity within one class. Method names are
// case-insensitive; properties and constants are not.
func (m *Member) Key() string {
	return MemberKey(m.Kind, m.Name)
}

// MemberKey builds the identity used by Member.Key.
func MemberKey(kind MemberKind, name string) string {
	switch kind {
	case MemberMethod:
		return "m:" + strings.ToLower(name)
	case MemberProperty:
		return "p:" + name
	default:
		return "c:" + name
	}
}

// ID returns the member's graph node identifier.
func (m *Member) ID() string {
	return MemberID(m.Owner, m.Kind, m.Name)
}

// MemberID formats a member node identifier such as App\User::save(),
// App\User::$name or App\User::LIMIT.
func MemberID(owner string, kind MemberKind, name string) string {
	switch kind {
	case MemberMethod:
		return owner + "::" + name + "()"
	case MemberProperty:
		return owner + "::$" + name
	default:
		return owner + "::" + name
	}
}

// Label returns the member name as written in source: run(), $name or NAME.
func (m *Member) Label() string {
	switch m.Kind {
	case MemberMethod:
		return m.Name + "()"
	case MemberProperty:
		return "$" + m.Name
	default:
		return m.Name
	}
}

// Copy returns a copy of m owned by owner.
func (m *Member) Copy(owner string, inherited bool) *Member {
	c := *m
	c.Owner = owner
	c.Inherited = m.Inherited || inherited
	return &c
}

// Declaration is a class, interface, trait or function.
type Declaration struct {
	Kind       ir.DeclKind `json:"kind"`
	FQN        string      `json:"fqn"`
	Name       string      `json:"name"`
	Namespace  string      `json:"namespace,omitempty"`
	Abstract   bool        `json:"abstract,omitempty"`
	Extends    []string    `json:"extends,omitempty"`
	Implements []string    `json:"implements,omitempty"`
	Traits     []string    `json:"traits,omitempty"`
	Members    []*Member   `json:"members,omitempty"`
	Location   Location    `json:"location"`

	Scope *Scope   `json:"-"`
	Decl  *ir.Decl `json:"-"`
}

// Scope holds the per-unit name context: namespace and `use` aliases.
// Aliases are visible only inside the unit that declared them.
type Scope struct {
	Unit      int         `json:"unit"`
	Path      string      `json:"path"`
	Namespace string      `json:"namespace,omitempty"`
	Imports   []ir.Import `json:"imports,omitempty"`

	classAliases    map[string]string
	functionAliases map[string]string
	constAliases    map[string]string
}

// NewScope builds the scope for a unit.
func NewScope(index int, u *ir.Unit) *Scope {
	s := &Scope{
		Unit:            index,
		Path:            u.Path,
		Namespace:       strings.Trim(u.Namespace, `\`),
		Imports:         u.Imports,
		classAliases:    make(map[string]string),
		functionAliases: make(map[string]string),
		constAliases:    make(map[string]string),
	}
	for _, imp := range u.Imports {
		alias := strings.ToLower(imp.EffectiveAlias())
		target := strings.TrimLeft(imp.Name, `\`)
		switch imp.EffectiveKind() {
		case ir.ImportFunction:
			s.functionAliases[alias] = target
		case ir.ImportConst:
			s.constAliases[alias] = target
		default:
			s.classAliases[alias] = target
		}
	}
	return s
}

// ClassAlias returns the fully-qualified name imported under alias.
func (s *Scope) ClassAlias(alias string) (string, bool) {
	fqn, ok := s.classAliases[strings.ToLower(alias)]
	return fqn, ok
}

// FunctionAlias returns the function imported under alias.
func (s *Scope) FunctionAlias(alias string) (string, bool) {
	fqn, ok := s.functionAliases[strings.ToLower(alias)]
	return fqn, ok
}

// Partial is the declaration set of a single unit, produced independently of
// every other unit.
type Partial struct {
	Index int
	Path  string
	Scope *Scope
	Decls []*Declaration
}

// CollectUnit extracts the declarations of one unit. It touches no shared
// state and is safe to call concurrently.
func CollectUnit(index int, u *ir.Unit) *Partial {
	scope := NewScope(index, u)
	p := &Partial{Index: index, Path: u.Path, Scope: scope}

	for i := range u.Decls {
		d := &u.Decls[i]
		fqn := ir.JoinName(scope.Namespace, d.Name)
		decl := &Declaration{
			Kind:       d.Kind,
			FQN:        fqn,
			Name:       ir.LastSegment(d.Name),
			Namespace:  ir.NamespaceOf(fqn),
			Abstract:   d.Abstract,
			Extends:    d.Extends,
			Implements: d.Implements,
			Traits:     d.Traits,
			Location:   Location{Path: u.Path, Line: d.Line},
			Scope:      scope,
			Decl:       d,
		}
		if d.Kind.IsClassLike() {
			decl.Members = collectMembers(fqn, scope, d)
		}
		p.Decls = append(p.Decls, decl)
	}
	return p
}

func collectMembers(owner string, scope *Scope, d *ir.Decl) []*Member {
	members := make([]*Member, 0, len(d.Methods)+len(d.Properties)+len(d.Constants))
	for i := range d.Methods {
		m := &d.Methods[i]
		members = append(members, &Member{
			Kind:       MemberMethod,
			Name:       m.Name,
			Owner:      owner,
			Origin:     owner,
			Static:     m.Static,
			Abstract:   m.Abstract,
			Visibility: m.Visibility,
			Type:       m.ReturnType,
			Location:   Location{Path: scope.Path, Line: m.Line},
			Scope:      scope,
			Method:     m,
		})
	}
	for i := range d.Properties {
		p := &d.Properties[i]
		members = append(members, &Member{
			Kind:     MemberProperty,
			Name:     strings.TrimPrefix(p.Name, "$"),
			Owner:    owner,
			Origin:   owner,
			Static:   p.Static,
			Type:     p.Type,
			Location: Location{Path: scope.Path, Line: p.Line},
			Scope:    scope,
			Property: p,
		})
	}
	for i := range d.Constants {
		c := &d.Constants[i]
		members = append(members, &Member{
			Kind:     MemberConstant,
			Name:     c.Name,
			Owner:    owner,
			Origin:   owner,
			Static:   true,
			Location: Location{Path: scope.Path, Line: c.Line},
			Scope:    scope,
			Constant: c,
		})
	}
	return members
}
