// Package models holds the analysis report handed to output formatters,
// the MCP server and the watch loop.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/panbanda/cohere/pkg/analyzer/cohesion"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/coupling"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"github.com/panbanda/cohere/pkg/symbols"
)

// Report is the result of one analysis run.
type Report struct {
	RunID        string                `json:"run_id" toon:"run_id"`
	GeneratedAt  time.Time             `json:"generated_at" toon:"generated_at"`
	Granularity  commgraph.Granularity `json:"granularity" toon:"granularity"`
	Units        int                   `json:"units" toon:"units"`
	Declarations int                   `json:"declarations" toon:"declarations"`
	References   int                   `json:"references" toon:"references"`

	// Classes holds per-class cohesion, ordered by LCOM descending.
	Classes  []cohesion.ClassMetrics `json:"classes" toon:"classes"`
	Cohesion *cohesion.Summary       `json:"cohesion,omitempty" toon:"cohesion,omitempty"`

	ClassPairs      []coupling.Pair             `json:"class_pairs" toon:"class_pairs"`
	NamespacePairs  []coupling.Pair             `json:"namespace_pairs" toon:"namespace_pairs"`
	Nodes           []coupling.NodeMetrics      `json:"nodes" toon:"nodes"`
	Namespaces      []coupling.NamespaceMetrics `json:"namespaces" toon:"namespaces"`
	ClassCycles     []coupling.Cycle            `json:"class_cycles" toon:"class_cycles"`
	NamespaceCycles []coupling.Cycle            `json:"namespace_cycles" toon:"namespace_cycles"`
	Coupling        *coupling.Summary           `json:"coupling,omitempty" toon:"coupling,omitempty"`

	Diagnostics Diagnostics `json:"diagnostics" toon:"diagnostics"`
}

// NewReport creates an empty report with non-nil lists.
func NewReport(runID string, at time.Time) *Report {
	return &Report{
		RunID:           runID,
		GeneratedAt:     at,
		Classes:         make([]cohesion.ClassMetrics, 0),
		ClassPairs:      make([]coupling.Pair, 0),
		NamespacePairs:  make([]coupling.Pair, 0),
		Nodes:           make([]coupling.NodeMetrics, 0),
		Namespaces:      make([]coupling.NamespaceMetrics, 0),
		ClassCycles:     make([]coupling.Cycle, 0),
		NamespaceCycles: make([]coupling.Cycle, 0),
	}
}

// Fatal reports whether the run stopped before flattening.
func (r *Report) Fatal() bool {
	return r.Diagnostics.DuplicateDeclarations > 0
}

// Class finds the cohesion metrics of a class.
func (r *Report) Class(fqn string) (*cohesion.ClassMetrics, bool) {
	for i := range r.Classes {
		if r.Classes[i].Class == fqn {
			return &r.Classes[i], true
		}
	}
	return nil, false
}

// FilterClasses returns a copy of the report whose class lists only hold
// classes matching pattern. Namespace separators may be written as \ or /;
// '*' stops at a separator and '**' does not.
func (r *Report) FilterClasses(pattern string) (*Report, error) {
	compiled, err := glob.Compile(strings.ReplaceAll(pattern, `\`, "/"), '/')
	if err != nil {
		return nil, fmt.Errorf("invalid class pattern %q: %w", pattern, err)
	}
	g := fqnMatcher{compiled}

	out := *r
	out.Classes = make([]cohesion.ClassMetrics, 0)
	for _, c := range r.Classes {
		if g.Match(c.Class) {
			out.Classes = append(out.Classes, c)
		}
	}
	out.Nodes = make([]coupling.NodeMetrics, 0)
	for _, n := range r.Nodes {
		if g.Match(n.ID) {
			out.Nodes = append(out.Nodes, n)
		}
	}
	out.ClassPairs = make([]coupling.Pair, 0)
	for _, p := range r.ClassPairs {
		if g.Match(p.From) || g.Match(p.To) {
			out.ClassPairs = append(out.ClassPairs, p)
		}
	}
	out.ClassCycles = make([]coupling.Cycle, 0)
	for _, c := range r.ClassCycles {
		for _, id := range c.Nodes {
			if g.Match(id) {
				out.ClassCycles = append(out.ClassCycles, c)
				break
			}
		}
	}
	return &out, nil
}

type fqnMatcher struct {
	g glob.Glob
}

func (m fqnMatcher) Match(fqn string) bool {
	return m.g.Match(strings.ReplaceAll(fqn, `\`, "/"))
}

// Diagnostics collects everything the run reported besides metrics.
type Diagnostics struct {
	DuplicateDeclarations int  `json:"duplicate_declarations" toon:"duplicate_declarations"`
	TraitConflicts        int  `json:"trait_conflicts" toon:"trait_conflicts"`
	InheritanceCycles     int  `json:"inheritance_cycles" toon:"inheritance_cycles"`
	UnresolvedReferences  int  `json:"unresolved_references" toon:"unresolved_references"`
	MalformedInputs       int  `json:"malformed_inputs" toon:"malformed_inputs"`
	CollapsedInputs       int  `json:"collapsed_inputs" toon:"collapsed_inputs"`
	CyclesTruncated       bool `json:"cycles_truncated,omitempty" toon:"cycles_truncated,omitempty"`

	Duplicates []*symbols.DuplicateDeclarationError `json:"duplicates,omitempty" toon:"duplicates,omitempty"`
	Conflicts  []*symbols.TraitConflictError        `json:"conflicts,omitempty" toon:"conflicts,omitempty"`
	Cycles     []*symbols.CyclicInheritanceError    `json:"cycles,omitempty" toon:"cycles,omitempty"`
	Malformed  []*resolve.MalformedInputWarning     `json:"malformed,omitempty" toon:"malformed,omitempty"`

	// Collapsed lists the paths of inputs dropped as exact duplicates of an
	// earlier input.
	Collapsed []string `json:"collapsed,omitempty" toon:"collapsed,omitempty"`
}

// Total returns the number of error and warning diagnostics.
func (d *Diagnostics) Total() int {
	return d.DuplicateDeclarations + d.TraitConflicts + d.InheritanceCycles + d.UnresolvedReferences + d.MalformedInputs
}

// Err joins the fatal diagnostics into one error, or returns nil.
func (d *Diagnostics) Err() error {
	if len(d.Duplicates) == 0 {
		return nil
	}
	errs := make([]error, len(d.Duplicates))
	for i, e := range d.Duplicates {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Errors returns every diagnostic as an error, fatal ones first.
func (d *Diagnostics) Errors() []error {
	var errs []error
	for _, e := range d.Duplicates {
		errs = append(errs, e)
	}
	for _, e := range d.Cycles {
		errs = append(errs, e)
	}
	for _, e := range d.Conflicts {
		errs = append(errs, e)
	}
	for _, e := range d.Malformed {
		errs = append(errs, e)
	}
	return errs
}
