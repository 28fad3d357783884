package main

import (
	"errors"
	"fmt"

	"github.com/panbanda/cohere/internal/output"
	"github.com/panbanda/cohere/internal/service/analysis"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/coupling"
	"github.com/panbanda/cohere/pkg/engine"
	"github.com/urfave/cli/v2"
)

// queryFlags drop --class and --top, which make no sense for a two-node
// query.
func queryFlags() []cli.Flag {
	return withFlags(inputFlags(), []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, markdown, toon, yaml (default from config)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.StringFlag{
			Name:     "from",
			Usage:    "Start node",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "Target node",
			Required: true,
		},
	})
}

func relationCmd() *cli.Command {
	return &cli.Command{
		Name:      "relation",
		Usage:     "Explain how two classes use each other",
		ArgsUsage: "[path...]",
		Description: `Lists every use of --to inside --from and every use of --from inside
--to, member by member, plus extends, implements and trait-use flags.

Example:
  cohere relation --from 'App\Models\User' --to 'App\Models\Team' src/`,
		Flags: queryFlags(),
		Action: func(c *cli.Context) error {
			return runReport(c, func(run *analysis.Run, _ output.Options) (output.Renderable, error) {
				if run.Graph == nil {
					return nil, errors.New("analysis stopped before the graph was built")
				}
				rel, err := coupling.Relate(run.Graph, c.String("from"), c.String("to"))
				if err != nil {
					return nil, err
				}
				return output.RelationView(rel), nil
			})
		},
	}
}

func reachCmd() *cli.Command {
	return &cli.Command{
		Name:      "reach",
		Aliases:   []string{"path"},
		Usage:     "Find the shortest call chain between two methods",
		ArgsUsage: "[path...]",
		Description: `Follows method and static calls from --from to --to. Methods are written
with their fully-qualified class, e.g. 'App\Http\Controller::index()'.

Exits with status 1 when no chain exists.`,
		Flags: queryFlags(),
		Action: func(c *cli.Context) error {
			var found bool
			err := runReport(c, func(run *analysis.Run, _ output.Options) (output.Renderable, error) {
				if run.Graph == nil {
					return nil, errors.New("analysis stopped before the graph was built")
				}
				res, err := coupling.Reachable(run.Graph, c.String("from"), c.String("to"))
				if errors.Is(err, coupling.ErrUnknownNode) {
					return nil, fmt.Errorf("%w (methods are written Class::method())", err)
				}
				if err != nil {
					return nil, err
				}
				found = res.Reachable
				return output.ReachabilityView(res), nil
			}, engine.WithGranularity(commgraph.GranularityMember))
			if err != nil {
				return err
			}
			if !found {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}
