package mcpserver

import (
	"encoding/json"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	serverName     = "io.github.panbanda/cohere"
	imageRepo      = "ghcr.io/panbanda/cohere"
)

// Manifest is the server.json document a registry uses to list and launch
// the cohere MCP server.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

// Repository points at the source of the server.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package is one way to launch the server. The container image needs the
// analyzed project mounted at /workspace.
type Package struct {
	RegistryType         string        `json:"registryType"`
	Identifier           string        `json:"identifier"`
	RuntimeHint          string        `json:"runtimeHint,omitempty"`
	RuntimeArguments     []Argument    `json:"runtimeArguments,omitempty"`
	PackageArguments     []Argument    `json:"packageArguments,omitempty"`
	EnvironmentVariables []Environment `json:"environmentVariables,omitempty"`
	Transport            Transport     `json:"transport"`
}

// Argument is a positional or named command-line argument.
type Argument struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
}

// Environment is an environment variable the server reads at startup.
type Environment struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
}

// Transport names the MCP transport. cohere only speaks stdio.
type Transport struct {
	Type string `json:"type"`
}

// GenerateManifest renders the manifest for the given release version. An
// empty version (development builds) becomes 0.0.0.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}

	pkg := Package{
		RegistryType: "oci",
		Identifier:   imageRepo + ":" + version,
		RuntimeHint:  "docker",
		RuntimeArguments: []Argument{
			{Type: "named", Name: "-v", Value: "${PWD}:/workspace:ro", Description: "Project to analyze"},
			{Type: "named", Name: "-w", Value: "/workspace"},
		},
		PackageArguments: []Argument{{Type: "positional", Value: "mcp"}},
		EnvironmentVariables: []Environment{
			{Name: "COHERE_CONFIG", Description: "Path to a cohere config file"},
			{Name: "COHERE_CACHE_DIR", Description: "Directory for the on-disk parse cache"},
		},
		Transport: Transport{Type: "stdio"},
	}

	return json.MarshalIndent(Manifest{
		Schema:      manifestSchema,
		Name:        serverName,
		Title:       "cohere",
		Description: "Class cohesion (LCOM) and coupling analysis for PHP codebases",
		Version:     version,
		Repository:  &Repository{URL: "https://github.com/panbanda/cohere", Source: "github"},
		Packages:    []Package{pkg},
	}, "", "  ")
}
