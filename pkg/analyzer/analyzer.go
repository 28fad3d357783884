// Package analyzer holds the helpers shared by the analysis phases: phase
// names, bounded parallel maps and progress tracking.
package analyzer

// Phase names one barrier-separated step of the analysis pipeline.
type Phase string

const (
	// PhaseParse reads and lowers source files. It runs before the
	// pipeline proper and is not part of Phases.
	PhaseParse Phase = "parse"

	PhaseCollect  Phase = "collect"
	PhaseMerge    Phase = "merge"
	PhaseFlatten  Phase = "flatten"
	PhaseResolve  Phase = "resolve"
	PhaseGraph    Phase = "graph"
	PhaseCohesion Phase = "cohesion"
	PhaseCoupling Phase = "coupling"
)

// Phases lists the pipeline phases in execution order.
var Phases = []Phase{
	PhaseCollect, PhaseMerge, PhaseFlatten, PhaseResolve,
	PhaseGraph, PhaseCohesion, PhaseCoupling,
}

// String returns the string representation.
func (p Phase) String() string {
	return string(p)
}
