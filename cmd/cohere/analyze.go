package main

import (
	"github.com/panbanda/cohere/internal/output"
	"github.com/panbanda/cohere/internal/service/analysis"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/engine"
	"github.com/urfave/cli/v2"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"all"},
		Usage:     "Report cohesion, coupling, cycles and diagnostics",
		ArgsUsage: "[path...]",
		Flags: withFlags(inputFlags(), outputFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "granularity",
				Usage: "Graph granularity: class, member, or both (default from config)",
			},
		}),
		Action: runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	var extra []engine.Option
	if g := c.String("granularity"); g != "" {
		granularity := commgraph.Granularity(g)
		if !granularity.Valid() {
			return cli.Exit("--granularity must be class, member, or both", 2)
		}
		extra = append(extra, engine.WithGranularity(granularity))
	}
	return runReport(c, func(run *analysis.Run, opts output.Options) (output.Renderable, error) {
		return output.AnalysisView(run.Report, opts), nil
	}, extra...)
}

func cohesionCmd() *cli.Command {
	return &cli.Command{
		Name:      "cohesion",
		Aliases:   []string{"lcom"},
		Usage:     "Report LCOM and CK metrics per class",
		ArgsUsage: "[path...]",
		Flags:     withFlags(inputFlags(), outputFlags()),
		Action: func(c *cli.Context) error {
			return runReport(c, func(run *analysis.Run, opts output.Options) (output.Renderable, error) {
				return output.CohesionView(run.Report, opts), nil
			}, engine.WithGranularity(commgraph.GranularityMember))
		},
	}
}

func couplingCmd() *cli.Command {
	return &cli.Command{
		Name:      "coupling",
		Usage:     "Report class and namespace coupling and dependency cycles",
		ArgsUsage: "[path...]",
		Flags:     withFlags(inputFlags(), outputFlags()),
		Action: func(c *cli.Context) error {
			return runReport(c, func(run *analysis.Run, opts output.Options) (output.Renderable, error) {
				return output.CouplingView(run.Report, opts), nil
			}, engine.WithGranularity(commgraph.GranularityClass))
		},
	}
}
