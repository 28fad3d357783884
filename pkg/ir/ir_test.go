package ir

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameHelpers(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		last      string
		namespace string
	}{
		{"global", "Foo", "Foo", ""},
		{"qualified", `App\Models\User`, "User", `App\Models`},
		{"fully qualified", `\App\User`, "User", "App"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastSegment(tt.input); got != tt.last {
				t.Errorf("LastSegment(%q) = %q, want %q", tt.input, got, tt.last)
			}
			if got := NamespaceOf(tt.input); got != tt.namespace {
				t.Errorf("NamespaceOf(%q) = %q, want %q", tt.input, got, tt.namespace)
			}
		})
	}

	assert.Equal(t, `A\B`, JoinName(`\A\`, `\B`))
	assert.Equal(t, "B", JoinName("", "B"))
}

func TestImportDefaults(t *testing.T) {
	imp := Import{Name: `Vendor\Lib\Client`}
	assert.Equal(t, "Client", imp.EffectiveAlias())
	assert.Equal(t, ImportClass, imp.EffectiveKind())

	imp = Import{Name: `Vendor\Lib\Client`, Alias: "C", Kind: ImportFunction}
	assert.Equal(t, "C", imp.EffectiveAlias())
	assert.Equal(t, ImportFunction, imp.EffectiveKind())
}

func TestWalk(t *testing.T) {
	n := &Node{
		Kind: NodeAssign,
		Target: &Node{Kind: NodeProperty, Name: "x", Object: &Node{Kind: NodeVar, Name: "this"}},
		Value: &Node{Kind: NodeMethodCall, Name: "get", Object: &Node{Kind: NodeVar, Name: "this"},
			Children: []*Node{{Kind: NodeNew, Class: "Foo"}}},
	}

	var kinds []NodeKind
	Walk(n, func(n *Node) bool {
		kinds = append(kinds, n.Kind)
		return n.Kind != NodeMethodCall
	})

	assert.Equal(t, []NodeKind{NodeAssign, NodeProperty, NodeVar, NodeMethodCall}, kinds)
}

func TestDigest(t *testing.T) {
	a := Unit{Path: "a.php", Namespace: "App"}
	b := Unit{Path: "a.php", Namespace: "App"}
	c := Unit{Path: "a.php", Namespace: "Other"}

	assert.Equal(t, a.Digest(), b.Digest())
	assert.NotEqual(t, a.Digest(), c.Digest())
}

func TestDecodeUnits(t *testing.T) {
	doc := `{
	  "units": [{
	    "path": "src/User.php",
	    "namespace": "App",
	    "imports": [{"name": "Vendor\\Logger"}],
	    "decls": [{
	      "kind": "class",
	      "name": "User",
	      "properties": [{"name": "name", "type": "string"}],
	      "methods": [{
	        "name": "rename",
	        "body": [{"kind": "assign",
	          "target": {"kind": "property", "name": "name", "object": {"kind": "var", "name": "this"}},
	          "value": {"kind": "var", "name": "n"}}]
	      }]
	    }]
	  }]
	}`

	units, err := DecodeUnits(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "App", units[0].Namespace)
	require.Len(t, units[0].Decls, 1)
	assert.Equal(t, DeclClass, units[0].Decls[0].Kind)
	require.Len(t, units[0].Decls[0].Methods, 1)
	assert.Equal(t, NodeAssign, units[0].Decls[0].Methods[0].Body[0].Kind)
}

func TestDecodeUnits_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing units", `{}`},
		{"missing path", `{"units":[{"namespace":"A"}]}`},
		{"bad decl kind", `{"units":[{"path":"a","decls":[{"kind":"enum","name":"X"}]}]}`},
		{"node without kind", `{"units":[{"path":"a","decls":[{"kind":"function","name":"f","body":[{"name":"x"}]}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUnits(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidUnits), "got %v", err)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	units := []Unit{{
		Path: "f.php",
		Decls: []Decl{{
			Kind: DeclFunction, Name: "main",
			Body: []*Node{{Kind: NodeFuncCall, Name: "helper"}},
		}},
	}}

	var buf bytes.Buffer
	require.NoError(t, EncodeUnits(&buf, units))

	got, err := DecodeUnits(&buf)
	require.NoError(t, err)
	assert.Equal(t, units, got)
}
