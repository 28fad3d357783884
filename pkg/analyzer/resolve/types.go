package resolve

import (
	"fmt"

	"github.com/panbanda/cohere/pkg/symbols"
)

// Kind classifies a reference.
type Kind string

const (
	KindCall                 Kind = "call"
	KindStaticCall           Kind = "static_call"
	KindPropertyRead         Kind = "property_read"
	KindPropertyWrite        Kind = "property_write"
	KindStaticPropertyAccess Kind = "static_property_access"
	KindConstantAccess       Kind = "constant_access"
	KindInstantiation        Kind = "instantiation"
	KindInheritance          Kind = "inheritance"
	KindTraitUse             Kind = "trait_use"
	KindNamespaceUse         Kind = "namespace_use"
)

// Kinds lists every reference kind in a fixed order.
var Kinds = []Kind{
	KindCall, KindStaticCall, KindPropertyRead, KindPropertyWrite,
	KindStaticPropertyAccess, KindConstantAccess, KindInstantiation,
	KindInheritance, KindTraitUse, KindNamespaceUse,
}

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// TargetKind says what a reference points at.
type TargetKind string

const (
	TargetDecl      TargetKind = "declaration"
	TargetMember    TargetKind = "member"
	TargetNamespace TargetKind = "namespace"
	TargetUnknown   TargetKind = "unknown"
)

// Site is where a reference occurs.
type Site struct {
	Path      string `json:"path"`
	Line      int    `json:"line,omitempty"`
	Namespace string `json:"namespace,omitempty"`

	// Decl is the enclosing declaration; empty for unit-level imports.
	Decl string `json:"decl,omitempty"`

	// Member is the enclosing member's node ID; empty at declaration level
	// and inside free functions.
	Member string `json:"member,omitempty"`
}

// Target is what a reference resolves to.
type Target struct {
	Kind TargetKind `json:"kind"`

	// Decl is the target declaration, or the owner class of a member target.
	Decl string `json:"decl,omitempty"`

	// Member is the target member's node ID.
	Member     string             `json:"member,omitempty"`
	MemberKind symbols.MemberKind `json:"member_kind,omitempty"`

	// Namespace is set for namespace targets.
	Namespace string `json:"namespace,omitempty"`

	// Name labels unresolved targets with their best-effort name.
	Name string `json:"name,omitempty"`
}

// Reference is one resolved (or unresolved) use site.
type Reference struct {
	Kind   Kind   `json:"kind"`
	Source Site   `json:"source"`
	Target Target `json:"target"`

	// Inherited marks references made by a member body copied in from a
	// parent class.
	Inherited bool `json:"inherited,omitempty"`
}

// Resolved reports whether the target is known.
func (r Reference) Resolved() bool {
	return r.Target.Kind != TargetUnknown
}

// MalformedInputWarning reports an input node that does not match the
// expected shape. The node becomes an unknown reference.
type MalformedInputWarning struct {
	Path   string `json:"path"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

func (w *MalformedInputWarning) Error() string {
	loc := symbols.Location{Path: w.Path, Line: w.Line}
	return fmt.Sprintf("malformed input at %s: %s", loc, w.Reason)
}

// Result is the output of the resolution phase.
type Result struct {
	References []Reference
	Unresolved int
	Malformed  []*MalformedInputWarning
}
