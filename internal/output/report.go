package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/cohere/pkg/analyzer/cohesion"
	"github.com/panbanda/cohere/pkg/analyzer/coupling"
	"github.com/panbanda/cohere/pkg/models"
)

// Options controls how reports are rendered for people. Structured formats
// always carry the full data.
type Options struct {
	LCOMWarning        int
	LCOMCritical       int
	InstabilityWarning float64

	// Top limits table rows; 0 shows everything.
	Top int

	Colored bool
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{LCOMWarning: 2, LCOMCritical: 4, InstabilityWarning: 0.8, Top: 20}
}

func (o Options) limit(n int) int {
	if o.Top > 0 && o.Top < n {
		return o.Top
	}
	return n
}

func (o Options) truncated(shown, total int) []string {
	if shown == total {
		return nil
	}
	return []string{fmt.Sprintf("... %d more", total-shown)}
}

// AnalysisView renders a whole report: summary, cohesion, coupling, cycles
// and diagnostics.
func AnalysisView(r *models.Report, opts Options) *Report {
	out := &Report{Title: "Cohesion & Coupling Analysis", Data: r}
	out.Sections = append(out.Sections, SummarySection(r))
	if r.Granularity.Members() {
		out.Sections = append(out.Sections, CohesionTable(r, opts))
	}
	if r.Granularity.Classes() {
		out.Sections = append(out.Sections, CouplingTable(r, opts), NamespaceTable(r, opts))
	}
	out.Sections = append(out.Sections, CyclesSection(r), DiagnosticsSection(r))
	return out
}

// CohesionView renders only the cohesion part of a report.
func CohesionView(r *models.Report, opts Options) *Report {
	return &Report{
		Title: "Cohesion Analysis",
		Sections: []Renderable{
			CohesionTable(r, opts),
			UnusedSection(r),
			DiagnosticsSection(r),
		},
		Data: map[string]any{
			"classes":     r.Classes,
			"summary":     r.Cohesion,
			"diagnostics": r.Diagnostics,
		},
	}
}

// CouplingView renders only the coupling part of a report.
func CouplingView(r *models.Report, opts Options) *Report {
	return &Report{
		Title: "Coupling Analysis",
		Sections: []Renderable{
			CouplingTable(r, opts),
			PairsTable("Class Dependencies", r.ClassPairs, opts),
			NamespaceTable(r, opts),
			CyclesSection(r),
		},
		Data: map[string]any{
			"class_pairs":      r.ClassPairs,
			"namespace_pairs":  r.NamespacePairs,
			"nodes":            r.Nodes,
			"namespaces":       r.Namespaces,
			"class_cycles":     r.ClassCycles,
			"namespace_cycles": r.NamespaceCycles,
			"summary":          r.Coupling,
		},
	}
}

// SummarySection lists run-level counts.
func SummarySection(r *models.Report) *Section {
	lines := []string{
		fmt.Sprintf("Units: %d  Declarations: %d  References: %d", r.Units, r.Declarations, r.References),
	}
	if s := r.Cohesion; s != nil {
		lines = append(lines, fmt.Sprintf("Classes: %d  Avg LCOM: %.2f  Max LCOM: %d  Low cohesion: %d  Unused members: %d",
			s.TotalClasses, s.AvgLCOM, s.MaxLCOM, s.LowCohesionCount, s.UnusedMembers))
	}
	if s := r.Coupling; s != nil {
		lines = append(lines, fmt.Sprintf("Class pairs: %d  Namespace pairs: %d  Class cycles: %d  Namespace cycles: %d",
			s.ClassPairs, s.NamespacePairs, s.ClassCycles, s.NamespaceCycles))
	}
	return &Section{Title: "Summary", Lines: lines}
}

// CohesionTable lists classes, least cohesive first, grading LCOM against
// the thresholds.
func CohesionTable(r *models.Report, opts Options) *Table {
	classes := append([]cohesion.ClassMetrics(nil), r.Classes...)
	sort.SliceStable(classes, func(i, j int) bool {
		if classes[i].LCOM != classes[j].LCOM {
			return classes[i].LCOM > classes[j].LCOM
		}
		return classes[i].Class < classes[j].Class
	})

	n := opts.limit(len(classes))
	rows := make([][]string, 0, n)
	for _, c := range classes[:n] {
		lcom := fmt.Sprintf("%d", c.LCOM)
		if c.Excluded {
			lcom = "excluded"
		} else if opts.Colored {
			lcom = SeverityColor(Grade(float64(c.LCOM), float64(opts.LCOMWarning), float64(opts.LCOMCritical)), lcom)
		}
		rows = append(rows, []string{
			c.Class,
			lcom,
			formatHS(c.LCOMHS),
			fmt.Sprintf("%d", c.CBO),
			fmt.Sprintf("%d", c.RFC),
			fmt.Sprintf("%d", c.DIT),
			fmt.Sprintf("%d", c.NOM),
			fmt.Sprintf("%d", c.NOF),
			fmt.Sprintf("%d", len(c.Unused)),
		})
	}
	return NewTable("Cohesion",
		[]string{"Class", "LCOM", "LCOM-HS", "CBO", "RFC", "DIT", "NOM", "NOF", "Unused"},
		rows, opts.truncated(n, len(classes)), classes)
}

func formatHS(v float64) string {
	if v < 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// UnusedSection lists members that no other member of their class touches.
func UnusedSection(r *models.Report) *Section {
	var lines []string
	for _, c := range r.Classes {
		if len(c.Unused) > 0 {
			lines = append(lines, fmt.Sprintf("%s: %s", c.Class, strings.Join(c.Unused, ", ")))
		}
	}
	if len(lines) == 0 {
		lines = []string{"No isolated members."}
	}
	return &Section{Title: "Isolated Members", Lines: lines}
}

// CouplingTable lists class-level degrees, most efferent first.
func CouplingTable(r *models.Report, opts Options) *Table {
	nodes := append([]coupling.NodeMetrics(nil), r.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Efferent != nodes[j].Efferent {
			return nodes[i].Efferent > nodes[j].Efferent
		}
		return nodes[i].ID < nodes[j].ID
	})

	n := opts.limit(len(nodes))
	rows := make([][]string, 0, n)
	for _, m := range nodes[:n] {
		inst := fmt.Sprintf("%.2f", m.Instability)
		if opts.Colored && opts.InstabilityWarning > 0 && m.Instability >= opts.InstabilityWarning {
			inst = color.YellowString(inst)
		}
		rows = append(rows, []string{
			m.ID,
			string(m.Kind),
			fmt.Sprintf("%d", m.Afferent),
			fmt.Sprintf("%d", m.Efferent),
			fmt.Sprintf("%d", m.InDegree),
			fmt.Sprintf("%d", m.OutDegree),
			inst,
		})
	}
	return NewTable("Class Coupling",
		[]string{"Class", "Kind", "Ca", "Ce", "In", "Out", "Instability"},
		rows, opts.truncated(n, len(nodes)), nodes)
}

// PairsTable lists aggregated dependencies, heaviest first.
func PairsTable(title string, pairs []coupling.Pair, opts Options) *Table {
	sorted := SortPairs(pairs)
	n := opts.limit(len(sorted))
	rows := make([][]string, 0, n)
	for _, p := range sorted[:n] {
		rows = append(rows, []string{p.From, p.To, fmt.Sprintf("%d", p.Count), kindBreakdown(p)})
	}
	return NewTable(title, []string{"From", "To", "Count", "Kinds"}, rows, opts.truncated(n, len(sorted)), sorted)
}

// SortPairs returns a copy of pairs, heaviest first, then by endpoints.
func SortPairs(pairs []coupling.Pair) []coupling.Pair {
	sorted := append([]coupling.Pair(nil), pairs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		return sorted[i].To < sorted[j].To
	})
	return sorted
}

func kindBreakdown(p coupling.Pair) string {
	parts := make([]string, 0, len(p.Kinds))
	for k, c := range p.Kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, c))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// NamespaceTable lists namespace-level package metrics, furthest from the
// main sequence first.
func NamespaceTable(r *models.Report, opts Options) *Table {
	ns := append([]coupling.NamespaceMetrics(nil), r.Namespaces...)
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance > ns[j].Distance
		}
		return ns[i].Name < ns[j].Name
	})

	n := opts.limit(len(ns))
	rows := make([][]string, 0, n)
	for _, m := range ns[:n] {
		name := m.Name
		if name == "" {
			name = `\`
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%d", m.Types),
			fmt.Sprintf("%d", m.Afferent),
			fmt.Sprintf("%d", m.Efferent),
			fmt.Sprintf("%.2f", m.Instability),
			fmt.Sprintf("%.2f", m.Abstractness),
			fmt.Sprintf("%.2f", m.Distance),
		})
	}
	return NewTable("Namespace Coupling",
		[]string{"Namespace", "Types", "Ca", "Ce", "I", "A", "D"},
		rows, opts.truncated(n, len(ns)), ns)
}

// CyclesSection lists dependency cycles at both levels.
func CyclesSection(r *models.Report) *Section {
	var lines []string
	for _, c := range r.ClassCycles {
		lines = append(lines, "class: "+cyclePath(c))
	}
	for _, c := range r.NamespaceCycles {
		lines = append(lines, "namespace: "+cyclePath(c))
	}
	if r.Diagnostics.CyclesTruncated {
		lines = append(lines, "(cycle enumeration truncated)")
	}
	if len(lines) == 0 {
		lines = []string{"No dependency cycles."}
	}
	return &Section{
		Title: "Dependency Cycles",
		Lines: lines,
		Data: map[string]any{
			"class_cycles":     r.ClassCycles,
			"namespace_cycles": r.NamespaceCycles,
		},
	}
}

func cyclePath(c coupling.Cycle) string {
	if len(c.Nodes) == 0 {
		return ""
	}
	return strings.Join(c.Nodes, " -> ") + " -> " + c.Nodes[0]
}

// DiagnosticsSection lists errors and warnings raised during the run.
func DiagnosticsSection(r *models.Report) *Section {
	d := r.Diagnostics
	var lines []string
	for _, err := range d.Errors() {
		lines = append(lines, err.Error())
	}
	if d.UnresolvedReferences > 0 {
		lines = append(lines, fmt.Sprintf("%d unresolved references", d.UnresolvedReferences))
	}
	for _, p := range d.Collapsed {
		lines = append(lines, "duplicate input ignored: "+p)
	}
	if len(lines) == 0 {
		lines = []string{"No diagnostics."}
	}
	return &Section{Title: "Diagnostics", Lines: lines, Data: d}
}

// RelationView renders the two-way usage report between two classes.
func RelationView(rel *coupling.Relation) *Report {
	return &Report{
		Title:    fmt.Sprintf("%s <-> %s", rel.Forward.From, rel.Forward.To),
		Sections: []Renderable{directionTable(rel.Forward), directionTable(rel.Backward)},
		Data:     rel,
	}
}

func directionTable(d coupling.Direction) *Table {
	var flags []string
	if d.Extends {
		flags = append(flags, "extends")
	}
	if d.Implements {
		flags = append(flags, "implements")
	}
	if d.UsesTrait {
		flags = append(flags, "uses trait")
	}
	rows := make([][]string, 0, len(d.Uses))
	for _, u := range d.Uses {
		line := ""
		if u.Line > 0 {
			line = fmt.Sprintf("%d", u.Line)
		}
		rows = append(rows, []string{u.Where, u.Target, string(u.Kind), line})
	}
	var footer []string
	if len(flags) > 0 {
		footer = []string{strings.Join(flags, ", "), "", "", ""}
	}
	return NewTable(fmt.Sprintf("%s -> %s", d.From, d.To),
		[]string{"Where", "Target", "Kind", "Line"}, rows, footer, d)
}

// ReachabilityView renders a call-path query result.
func ReachabilityView(res *coupling.Reachability) *Section {
	lines := []string{fmt.Sprintf("%s is not reachable from %s", res.To, res.From)}
	if res.Reachable {
		lines = []string{strings.Join(res.Path, " -> ")}
	}
	return &Section{Title: "Call Path", Lines: lines, Data: res}
}

// Diagram is rendered diagram source. Text output is the bare source so it
// can be piped into mermaid-cli or dot; markdown fences it.
type Diagram struct {
	Syntax string `json:"syntax" toon:"syntax"`
	Nodes  int    `json:"nodes" toon:"nodes"`
	Edges  int    `json:"edges" toon:"edges"`
	Source string `json:"diagram" toon:"diagram"`
}

// DiagramView renders d as Mermaid, or as DOT when syntax is "dot". Both
// are pruned to opts' node and edge limits; Nodes and Edges count the
// diagram before pruning.
func DiagramView(d *coupling.Diagram, syntax string, opts coupling.MermaidOptions) *Diagram {
	out := &Diagram{Syntax: "mermaid", Nodes: len(d.Nodes), Edges: len(d.Edges)}
	if strings.EqualFold(syntax, "dot") {
		out.Syntax = "dot"
		out.Source = d.Prune(opts.MaxNodes, opts.MaxEdges).ToDOT("coupling")
		return out
	}
	out.Source = d.ToMermaidWithOptions(opts)
	return out
}

// RenderText implements Renderable.
func (d *Diagram) RenderText(w io.Writer, _ bool) error {
	_, err := io.WriteString(w, d.Source)
	return err
}

// RenderMarkdown implements Renderable.
func (d *Diagram) RenderMarkdown(w io.Writer) error {
	_, err := fmt.Fprintf(w, "```%s\n%s```\n", d.Syntax, d.Source)
	return err
}

// RenderData implements Renderable.
func (d *Diagram) RenderData() any {
	return d
}
