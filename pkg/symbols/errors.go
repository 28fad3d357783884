package symbols

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateDeclaration is the sentinel wrapped by DuplicateDeclarationError.
var ErrDuplicateDeclaration = errors.New("duplicate declaration")

// DuplicateDeclarationError reports two declarations sharing a fully-qualified
// name. It is fatal: no symbol table is analyzed further.
type DuplicateDeclarationError struct {
	FQN    string   `json:"fqn"`
	First  Location `json:"first"`
	Second Location `json:"second"`
}

func (e *DuplicateDeclarationError) Error() string {
	return fmt.Sprintf("duplicate declaration of %s at %s (first declared at %s)", e.FQN, e.Second, e.First)
}

func (e *DuplicateDeclarationError) Unwrap() error {
	return ErrDuplicateDeclaration
}

// TraitConflictError reports two traits providing the same member to a class
// that does not define it itself. The member of the first trait is kept.
type TraitConflictError struct {
	Class   string `json:"class"`
	Member  string `json:"member"`
	Kept    string `json:"kept"`
	Dropped string `json:"dropped"`
}

func (e *TraitConflictError) Error() string {
	return fmt.Sprintf("trait conflict in %s: %s provided by both %s and %s (kept %s)",
		e.Class, e.Member, e.Kept, e.Dropped, e.Kept)
}

// CyclicInheritanceError reports a cycle in parent or trait-use chains. Every
// declaration in Cycle is excluded from member flattening.
type CyclicInheritanceError struct {
	Cycle []string `json:"cycle"`
}

func (e *CyclicInheritanceError) Error() string {
	return "cyclic inheritance: " + strings.Join(e.Cycle, " -> ") + " -> " + e.Cycle[0]
}
