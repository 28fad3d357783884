package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/cohere/internal/output"
	"github.com/panbanda/cohere/internal/service/analysis"
	"github.com/panbanda/cohere/pkg/analyzer/cohesion"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/coupling"
	"github.com/panbanda/cohere/pkg/engine"
	"github.com/panbanda/cohere/pkg/models"
)

// AnalyzeInput is the base input for all tools.
type AnalyzeInput struct {
	Paths  []string `json:"paths,omitempty" jsonschema:"Files or directories to analyze. Defaults to current directory if empty."`
	Ref    string   `json:"ref,omitempty" jsonschema:"Git revision to analyze instead of the working tree, e.g. HEAD~1 or a branch name."`
	Format string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
}

// CohesionInput adds cohesion-specific options.
type CohesionInput struct {
	AnalyzeInput
	Class   string `json:"class,omitempty" jsonschema:"Glob over fully-qualified class names, e.g. App\\Http\\** or *Controller."`
	Sort    string `json:"sort,omitempty" jsonschema:"Sort by metric: lcom, cbo, rfc, dit, or name. Default lcom."`
	Top     int    `json:"top,omitempty" jsonschema:"Show top N classes. Default 20."`
	MinLCOM int    `json:"min_lcom,omitempty" jsonschema:"Only list classes with at least this LCOM."`
}

// CouplingInput adds coupling-specific options.
type CouplingInput struct {
	AnalyzeInput
	Class string `json:"class,omitempty" jsonschema:"Glob over fully-qualified class names; pairs are kept when either end matches."`
	Top   int    `json:"top,omitempty" jsonschema:"Show top N pairs and classes. Default 20."`
}

// GraphInput adds diagram options.
type GraphInput struct {
	AnalyzeInput
	Level    string `json:"level,omitempty" jsonschema:"Graph level: class (default), namespace, or member. member requires class."`
	Class    string `json:"class,omitempty" jsonschema:"Class whose internal member communication to draw when level is member."`
	Syntax   string `json:"syntax,omitempty" jsonschema:"Diagram syntax: mermaid (default) or dot."`
	MaxNodes int    `json:"max_nodes,omitempty" jsonschema:"Prune to the N most central nodes. Default 50."`
}

// RelationInput names two classes.
type RelationInput struct {
	AnalyzeInput
	From string `json:"from" jsonschema:"Fully-qualified name of the first class, e.g. App\\Models\\User."`
	To   string `json:"to" jsonschema:"Fully-qualified name of the second class."`
}

// CallPathInput names two methods or functions.
type CallPathInput struct {
	AnalyzeInput
	From string `json:"from" jsonschema:"Start method as Class::method() or a function name."`
	To   string `json:"to" jsonschema:"Target method as Class::method() or a function name."`
}

func getPaths(input AnalyzeInput) []string {
	if len(input.Paths) == 0 {
		return []string{"."}
	}
	return input.Paths
}

func getFormat(input AnalyzeInput) output.Format {
	switch strings.ToLower(input.Format) {
	case "json":
		return output.FormatJSON
	case "yaml", "yml":
		return output.FormatYAML
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON, output.FormatYAML:
		out, err := output.Marshal(data, format)
		return string(out), err
	case output.FormatMarkdown:
		out, err := output.Marshal(data, output.FormatTOON)
		if err != nil {
			return "", err
		}
		return "```\n" + string(out) + "```", nil
	default:
		out, err := output.Marshal(data, output.FormatTOON)
		return string(out), err
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// analyze runs the pipeline for a tool call, over a git revision when Ref
// is set.
func (s *Server) analyze(ctx context.Context, input AnalyzeInput, opts ...engine.Option) (*analysis.Run, error) {
	paths := getPaths(input)
	var (
		run *analysis.Run
		err error
	)
	if input.Ref != "" {
		run, err = s.svc.AnalyzeRef(ctx, paths[0], input.Ref, opts...)
	} else {
		run, err = s.svc.AnalyzePaths(ctx, paths, opts...)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func filterReport(r *models.Report, pattern string) (*models.Report, error) {
	if pattern == "" {
		return r, nil
	}
	return r.FilterClasses(pattern)
}

func top(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleAnalyzeCohesion(ctx context.Context, req *mcp.CallToolRequest, input CohesionInput) (*mcp.CallToolResult, any, error) {
	run, err := s.analyze(ctx, input.AnalyzeInput, engine.WithGranularity(commgraph.GranularityMember))
	if err != nil {
		return toolError(err.Error())
	}
	report, err := filterReport(run.Report, input.Class)
	if err != nil {
		return toolError(err.Error())
	}

	result := &cohesion.Analysis{GeneratedAt: report.GeneratedAt}
	for _, c := range report.Classes {
		if c.LCOM >= input.MinLCOM {
			result.Classes = append(result.Classes, c)
		}
	}
	result.CalculateSummary()

	switch input.Sort {
	case "cbo":
		result.SortByCBO()
	case "rfc":
		result.SortByRFC()
	case "dit":
		result.SortByDIT()
	case "name":
		result.SortByName()
	default:
		result.SortByLCOM()
	}
	if n := top(input.Top, 20); len(result.Classes) > n {
		result.Classes = result.Classes[:n]
	}

	return toolResult(struct {
		Classes     []cohesion.ClassMetrics `json:"classes" toon:"classes"`
		Summary     cohesion.Summary        `json:"summary" toon:"summary"`
		Diagnostics models.Diagnostics      `json:"diagnostics" toon:"diagnostics"`
	}{result.Classes, result.Summary, report.Diagnostics}, getFormat(input.AnalyzeInput))
}

func (s *Server) handleAnalyzeCoupling(ctx context.Context, req *mcp.CallToolRequest, input CouplingInput) (*mcp.CallToolResult, any, error) {
	run, err := s.analyze(ctx, input.AnalyzeInput, engine.WithGranularity(commgraph.GranularityClass))
	if err != nil {
		return toolError(err.Error())
	}
	report, err := filterReport(run.Report, input.Class)
	if err != nil {
		return toolError(err.Error())
	}

	n := top(input.Top, 20)
	pairs := output.SortPairs(report.ClassPairs)
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	nodes := (&coupling.Analysis{Classes: coupling.Level{Nodes: report.Nodes}}).SortByEfferent()
	if len(nodes) > n {
		nodes = nodes[:n]
	}

	result := struct {
		ClassPairs      []coupling.Pair             `json:"class_pairs" toon:"class_pairs"`
		Classes         []coupling.NodeMetrics      `json:"classes" toon:"classes"`
		Namespaces      []coupling.NamespaceMetrics `json:"namespaces" toon:"namespaces"`
		ClassCycles     []coupling.Cycle            `json:"class_cycles" toon:"class_cycles"`
		NamespaceCycles []coupling.Cycle            `json:"namespace_cycles" toon:"namespace_cycles"`
		Summary         *coupling.Summary           `json:"summary,omitempty" toon:"summary,omitempty"`
	}{
		ClassPairs:      pairs,
		Classes:         nodes,
		Namespaces:      report.Namespaces,
		ClassCycles:     report.ClassCycles,
		NamespaceCycles: report.NamespaceCycles,
		Summary:         report.Coupling,
	}
	return toolResult(result, getFormat(input.AnalyzeInput))
}

func (s *Server) handleCouplingGraph(ctx context.Context, req *mcp.CallToolRequest, input GraphInput) (*mcp.CallToolResult, any, error) {
	level := strings.ToLower(input.Level)
	if level == "member" && input.Class == "" {
		return toolError("level member requires class")
	}

	run, err := s.analyze(ctx, input.AnalyzeInput)
	if err != nil {
		return toolError(err.Error())
	}

	if run.Coupling == nil && level != "member" {
		return toolError("class and namespace graphs need class granularity")
	}

	var d *coupling.Diagram
	switch level {
	case "member":
		class := strings.TrimPrefix(input.Class, `\`)
		if _, ok := run.Graph.Node(class); !ok {
			return toolError("unknown class " + class)
		}
		d = coupling.ClassDiagram(run.Graph, class)
	case "namespace":
		d = coupling.NewDiagram(run.Graph, &run.Coupling.Namespaces)
	case "", "class":
		d = coupling.NewDiagram(run.Graph, &run.Coupling.Classes)
	default:
		return toolError(fmt.Sprintf("unknown level %q", input.Level))
	}

	opts := coupling.DefaultMermaidOptions()
	if input.MaxNodes > 0 {
		opts.MaxNodes = input.MaxNodes
	}
	return toolResult(output.DiagramView(d, input.Syntax, opts), getFormat(input.AnalyzeInput))
}

func (s *Server) handleClassRelation(ctx context.Context, req *mcp.CallToolRequest, input RelationInput) (*mcp.CallToolResult, any, error) {
	if input.From == "" || input.To == "" {
		return toolError("from and to are required")
	}
	run, err := s.analyze(ctx, input.AnalyzeInput)
	if err != nil {
		return toolError(err.Error())
	}
	rel, err := coupling.Relate(run.Graph, input.From, input.To)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(rel, getFormat(input.AnalyzeInput))
}

func (s *Server) handleCallPath(ctx context.Context, req *mcp.CallToolRequest, input CallPathInput) (*mcp.CallToolResult, any, error) {
	if input.From == "" || input.To == "" {
		return toolError("from and to are required")
	}
	run, err := s.analyze(ctx, input.AnalyzeInput, engine.WithGranularity(commgraph.GranularityMember))
	if err != nil {
		return toolError(err.Error())
	}
	res, err := coupling.Reachable(run.Graph, input.From, input.To)
	if errors.Is(err, coupling.ErrUnknownNode) {
		return toolError(err.Error() + " (methods are written Class::method())")
	}
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(res, getFormat(input.AnalyzeInput))
}
