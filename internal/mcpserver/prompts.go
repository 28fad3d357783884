package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptDoc is one embedded prompt. Bodies reference arguments as {{name}}.
type promptDoc struct {
	Description string           `yaml:"description"`
	Arguments   []promptArgument `yaml:"arguments"`
	Body        string           `yaml:"-"`
}

type promptArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

// registerPrompts registers one prompt per embedded markdown file, named
// after the file.
func (s *Server) registerPrompts() {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := promptFiles.ReadFile(path.Join("prompts", entry.Name()))
		if err != nil {
			continue
		}

		doc := parsePrompt(content)
		prompt := &mcp.Prompt{
			Name:        strings.TrimSuffix(entry.Name(), ".md"),
			Description: doc.Description,
		}
		for _, a := range doc.Arguments {
			prompt.Arguments = append(prompt.Arguments, &mcp.PromptArgument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		s.server.AddPrompt(prompt, doc.handler())
	}
}

// parsePrompt splits YAML frontmatter from the body. Content without
// well-formed frontmatter is returned whole as the body.
func parsePrompt(content []byte) promptDoc {
	whole := promptDoc{Body: string(content)}
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return whole
	}

	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end == -1 {
		return whole
	}

	var doc promptDoc
	if err := yaml.Unmarshal(rest[:end], &doc); err != nil {
		return whole
	}
	doc.Body = strings.TrimPrefix(string(rest[end+5:]), "\n")
	return doc
}

// render substitutes argument values into the body, falling back to the
// declared defaults.
func (d promptDoc) render(args map[string]string) (string, error) {
	pairs := make([]string, 0, 2*len(d.Arguments))
	for _, a := range d.Arguments {
		v, ok := args[a.Name]
		if !ok || v == "" {
			if a.Required {
				return "", fmt.Errorf("missing required argument %q", a.Name)
			}
			v = a.Default
		}
		pairs = append(pairs, "{{"+a.Name+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(d.Body), nil
}

func (d promptDoc) handler() mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		text, err := d.render(args)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: d.Description,
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: text}},
			},
		}, nil
	}
}
