package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/panbanda/cohere/internal/output"
	"github.com/panbanda/cohere/internal/service/analysis"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/coupling"
	"github.com/panbanda/cohere/pkg/engine"
	"github.com/urfave/cli/v2"
)

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Aliases:   []string{"diagram"},
		Usage:     "Draw the class, namespace, or member dependency graph",
		ArgsUsage: "[path...]",
		Flags: withFlags(inputFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format: text (bare diagram), markdown (fenced), json, toon, yaml",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.StringFlag{
				Name:  "level",
				Value: "class",
				Usage: "Graph level: class, namespace, or member",
			},
			&cli.StringFlag{
				Name:  "class",
				Usage: "Class to draw at member level",
			},
			&cli.StringFlag{
				Name:  "syntax",
				Value: "mermaid",
				Usage: "Diagram syntax: mermaid or dot",
			},
			&cli.IntFlag{
				Name:  "max-nodes",
				Value: 50,
				Usage: "Prune to the N most central nodes",
			},
			&cli.IntFlag{
				Name:  "max-edges",
				Value: 150,
				Usage: "Keep at most N edges",
			},
			&cli.StringFlag{
				Name:  "direction",
				Value: "LR",
				Usage: "Mermaid direction: LR, TD, BT, or RL",
			},
		}),
		Action: runGraphCmd,
	}
}

func runGraphCmd(c *cli.Context) error {
	level := strings.ToLower(c.String("level"))
	class := strings.TrimPrefix(c.String("class"), `\`)

	var extra []engine.Option
	switch level {
	case "class", "namespace":
		extra = append(extra, engine.WithGranularity(commgraph.GranularityClass))
	case "member":
		if class == "" {
			return cli.Exit("--level member requires --class", 2)
		}
		extra = append(extra, engine.WithGranularity(commgraph.GranularityMember))
	default:
		return cli.Exit(fmt.Sprintf("unknown level %q: want class, namespace, or member", level), 2)
	}

	opts := coupling.MermaidOptions{
		MaxNodes:    c.Int("max-nodes"),
		MaxEdges:    c.Int("max-edges"),
		ShowWeights: true,
		Direction:   coupling.MermaidDirection(strings.ToUpper(c.String("direction"))),
	}

	return runReport(c, func(run *analysis.Run, _ output.Options) (output.Renderable, error) {
		d, err := diagramFor(run, level, class)
		if err != nil {
			return nil, err
		}
		return output.DiagramView(d, c.String("syntax"), opts), nil
	}, extra...)
}

func diagramFor(run *analysis.Run, level, class string) (*coupling.Diagram, error) {
	if run.Graph == nil || (level != "member" && run.Coupling == nil) {
		return nil, errors.New("analysis stopped before the graph was built")
	}
	switch level {
	case "member":
		if _, ok := run.Graph.Node(class); !ok {
			return nil, fmt.Errorf("unknown class %s", class)
		}
		return coupling.ClassDiagram(run.Graph, class), nil
	case "namespace":
		return coupling.NewDiagram(run.Graph, &run.Coupling.Namespaces), nil
	default:
		return coupling.NewDiagram(run.Graph, &run.Coupling.Classes), nil
	}
}
