// Package engine runs the analysis pipeline over lowered compilation units:
// collect, merge, flatten, resolve, graph, cohesion and coupling, each phase
// separated from the next by a barrier.
package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/analyzer/cohesion"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/coupling"
	"github.com/panbanda/cohere/pkg/analyzer/flatten"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/models"
	"github.com/panbanda/cohere/pkg/symbols"
)

// Observer receives pipeline measurements.
type Observer interface {
	PhaseCompleted(phase analyzer.Phase, elapsed time.Duration)
	Diagnostics(kind string, n int)
	GraphEdges(level commgraph.Level, n int)
}

type nopObserver struct{}

func (nopObserver) PhaseCompleted(analyzer.Phase, time.Duration) {}
func (nopObserver) Diagnostics(string, int) {}
func (nopObserver) GraphEdges(commgraph.Level, int) {}

// Engine holds the pipeline settings. It is safe to reuse for several runs.
type Engine struct {
	granularity      commgraph.Granularity
	workers          int
	includeInherited bool
	externals        []string
	builtins         bool
	maxCycleSCC      int
	maxCycles        int
	unstable         float64

	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithGranularity selects the edge levels built. Cohesion needs member
// edges and coupling needs class edges; a phase whose level is missing is
// skipped.
func WithGranularity(g commgraph.Granularity) Option {
	return func(e *Engine) {
		e.granularity = g
	}
}

// WithWorkers sets the number of workers for the parallel phases.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithIncludeInherited controls whether inherited members take part in
// cohesion.
func WithIncludeInherited(include bool) Option {
	return func(e *Engine) {
		e.includeInherited = include
	}
}

// WithExternals marks names as known externals during resolution.
func WithExternals(names []string) Option {
	return func(e *Engine) {
		e.externals = append(e.externals, names...)
	}
}

// WithBuiltins marks the PHP runtime classes and functions as externals.
func WithBuiltins(enabled bool) Option {
	return func(e *Engine) {
		e.builtins = enabled
	}
}

// WithCycleLimits bounds cycle enumeration.
func WithCycleLimits(maxSCC, maxCycles int) Option {
	return func(e *Engine) {
		e.maxCycleSCC = maxSCC
		e.maxCycles = maxCycles
	}
}

// WithInstabilityThreshold sets the instability counted as unstable.
func WithInstabilityThreshold(v float64) Option {
	return func(e *Engine) {
		e.unstable = v
	}
}

// WithLogger sets the logger. Phase timings are logged at debug level and
// diagnostics at warn level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine with default settings.
func New(opts ...Option) *Engine {
	e := &Engine{
		granularity:      commgraph.GranularityBoth,
		includeInherited: true,
		maxCycleSCC:      coupling.DefaultMaxCycleSCC,
		maxCycles:        coupling.DefaultMaxCycles,
		unstable:         0.8,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:         nopObserver{},
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the full output of one run. Report is always set; the other
// fields are nil when the run stopped before producing them.
type Result struct {
	Report   *models.Report
	Table    *symbols.Table
	Flat     *flatten.Result
	Graph    *commgraph.Graph
	Cohesion *cohesion.Analysis
	Coupling *coupling.Analysis
}

// Analyze runs the pipeline with a fresh engine and returns the report.
func Analyze(ctx context.Context, units []ir.Unit, opts ...Option) (*models.Report, error) {
	res, err := New(opts...).Run(ctx, units)
	if res == nil {
		return nil, err
	}
	return res.Report, err
}

// Run executes every phase. Cancellation is checked between phases only; a
// phase that started runs to completion. Duplicate declarations stop the
// run after merging: the returned result carries a diagnostics-only report
// and the error joins every duplicate.
func (e *Engine) Run(ctx context.Context, units []ir.Unit) (*Result, error) {
	if !e.granularity.Valid() {
		return nil, fmt.Errorf("invalid granularity %q", e.granularity)
	}

	runID := uuid.NewString()
	log := e.logger.With("run", runID)
	report := models.NewReport(runID, e.now())
	report.Granularity = e.granularity
	res := &Result{Report: report}

	units, collapsed := collapseDuplicates(units, e.workers)
	report.Units = len(units)
	report.Diagnostics.Collapsed = collapsed
	report.Diagnostics.CollapsedInputs = len(collapsed)
	for _, p := range collapsed {
		log.Debug("collapsed duplicate input", "path", p)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var parts []*symbols.Partial
	e.phase(log, analyzer.PhaseCollect, func() {
		tracker := analyzer.TrackerFromContext(ctx)
		if tracker != nil {
			tracker.StartPhase(analyzer.PhaseCollect, len(units))
		}
		parts = analyzer.Map(units, e.workers, func(i int, u ir.Unit) *symbols.Partial {
			p := symbols.CollectUnit(i, &u)
			if tracker != nil {
				tracker.Tick(u.Path)
			}
			return p
		})
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var dups []*symbols.DuplicateDeclarationError
	e.phase(log, analyzer.PhaseMerge, func() {
		b := symbols.NewBuilder()
		b.Merge(parts)
		res.Table, dups = b.Freeze()
	})
	report.Declarations = res.Table.Len()
	if len(dups) > 0 {
		report.Diagnostics.Duplicates = dups
		report.Diagnostics.DuplicateDeclarations = len(dups)
		e.diagnostics(log, "duplicate_declaration", len(dups))
		for _, d := range dups {
			log.Warn("duplicate declaration", "fqn", d.FQN, "first", d.First.String(), "second", d.Second.String())
		}
		return res, report.Diagnostics.Err()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.phase(log, analyzer.PhaseFlatten, func() {
		res.Flat = flatten.New(flatten.WithWorkers(e.workers)).Flatten(ctx, res.Table)
	})
	d := &report.Diagnostics
	d.Conflicts = res.Flat.Conflicts
	d.TraitConflicts = len(res.Flat.Conflicts)
	d.Cycles = res.Flat.Cycles
	d.InheritanceCycles = len(res.Flat.Cycles)
	for _, c := range res.Flat.Cycles {
		log.Warn("inheritance cycle", "cycle", c.Cycle)
	}
	for _, c := range res.Flat.Conflicts {
		log.Warn("trait conflict", "class", c.Class, "member", c.Member, "kept", c.Kept, "dropped", c.Dropped)
	}
	e.diagnostics(log, "trait_conflict", d.TraitConflicts)
	e.diagnostics(log, "inheritance_cycle", d.InheritanceCycles)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var resolved *resolve.Result
	e.phase(log, analyzer.PhaseResolve, func() {
		ropts := []resolve.Option{resolve.WithWorkers(e.workers), resolve.WithExternals(e.externals)}
		if e.builtins {
			ropts = append(ropts, resolve.WithBuiltins())
		}
		resolved = resolve.New(ropts...).Resolve(ctx, res.Table, res.Flat)
	})
	report.References = len(resolved.References)
	d.UnresolvedReferences = resolved.Unresolved
	d.Malformed = resolved.Malformed
	d.MalformedInputs = len(resolved.Malformed)
	for _, m := range resolved.Malformed {
		log.Warn("malformed input", "path", m.Path, "line", m.Line, "reason", m.Reason)
	}
	e.diagnostics(log, "unresolved_reference", d.UnresolvedReferences)
	e.diagnostics(log, "malformed_input", d.MalformedInputs)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.phase(log, analyzer.PhaseGraph, func() {
		b := commgraph.NewBuilder(res.Table, res.Flat, e.granularity)
		b.Add(resolved.References)
		res.Graph = b.Freeze()
	})
	for _, level := range []commgraph.Level{commgraph.LevelMember, commgraph.LevelClass, commgraph.LevelNamespace} {
		e.observer.GraphEdges(level, len(res.Graph.Edges(level)))
	}

	if e.granularity.Members() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		e.phase(log, analyzer.PhaseCohesion, func() {
			res.Cohesion, err = cohesion.New(
				cohesion.WithWorkers(e.workers),
				cohesion.WithIncludeInherited(e.includeInherited),
			).Analyze(ctx, res.Graph, res.Flat)
		})
		if err != nil {
			return nil, fmt.Errorf("cohesion: %w", err)
		}
		report.Classes = res.Cohesion.Classes
		report.Cohesion = &res.Cohesion.Summary
	}

	if e.granularity.Classes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		e.phase(log, analyzer.PhaseCoupling, func() {
			res.Coupling, err = coupling.New(
				coupling.WithMaxCycleSCC(e.maxCycleSCC),
				coupling.WithMaxCycles(e.maxCycles),
				coupling.WithInstabilityThreshold(e.unstable),
			).Analyze(ctx, res.Graph, res.Table)
		})
		if err != nil {
			return nil, fmt.Errorf("coupling: %w", err)
		}
		c := res.Coupling
		report.ClassPairs = c.Classes.Pairs
		report.NamespacePairs = c.Namespaces.Pairs
		report.Nodes = c.Classes.Nodes
		report.Namespaces = c.Packages
		report.ClassCycles = c.Classes.Cycles
		report.NamespaceCycles = c.Namespaces.Cycles
		report.Coupling = &c.Summary
		d.CyclesTruncated = c.Classes.Truncated || c.Namespaces.Truncated
		if d.CyclesTruncated {
			log.Warn("cycle enumeration truncated", "max_cycle_scc", e.maxCycleSCC, "max_cycles", e.maxCycles)
		}
	}

	log.Debug("analysis complete",
		"units", report.Units,
		"declarations", report.Declarations,
		"references", report.References,
		"diagnostics", d.Total())
	return res, nil
}

func (e *Engine) phase(log *slog.Logger, p analyzer.Phase, fn func()) {
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	e.observer.PhaseCompleted(p, elapsed)
	log.Debug("phase complete", "phase", p.String(), "elapsed", elapsed)
}

func (e *Engine) diagnostics(log *slog.Logger, kind string, n int) {
	if n == 0 {
		return
	}
	e.observer.Diagnostics(kind, n)
	log.Debug("diagnostics", "kind", kind, "count", n)
}

// collapseDuplicates drops inputs whose path and content digest both match
// an earlier input. Inputs sharing a path with different content are kept;
// any declarations they share surface as duplicate declarations.
func collapseDuplicates(units []ir.Unit, workers int) ([]ir.Unit, []string) {
	digests := analyzer.Map(units, workers, func(_ int, u ir.Unit) [32]byte {
		return u.Digest()
	})

	seen := make(map[string]bool, len(units))
	kept := make([]ir.Unit, 0, len(units))
	var collapsed []string
	for i, u := range units {
		key := u.Path + "\x00" + hex.EncodeToString(digests[i][:])
		if seen[key] {
			collapsed = append(collapsed, u.Path)
			continue
		}
		seen[key] = true
		kept = append(kept, u)
	}
	return kept, collapsed
}

// IsFatal reports whether err stopped the run before flattening.
func IsFatal(err error) bool {
	return errors.Is(err, symbols.ErrDuplicateDeclaration)
}
