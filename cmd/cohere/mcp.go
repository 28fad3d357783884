package main

import (
	"fmt"

	"github.com/panbanda/cohere/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes cohere's analyses
as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "cohere": {
        "command": "cohere",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_cohesion   LCOM clusters, unused members and CK metrics per class
  - analyze_coupling   Class pairs, afferent/efferent coupling, namespace distance, cycles
  - coupling_graph     Mermaid or DOT diagram of classes, namespaces, or one class's members
  - class_relation     How two classes use each other, member by member
  - call_path          Shortest call chain between two methods`,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the MCP registry manifest (server.json)",
				Action: func(c *cli.Context) error {
					data, err := mcpserver.GenerateManifest(version)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, string(data))
					return nil
				},
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	return mcpserver.NewServer(version, s.svc).Run(c.Context)
}
