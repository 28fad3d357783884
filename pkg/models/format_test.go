package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/panbanda/cohere/pkg/analyzer/cohesion"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/coupling"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	toon "github.com/toon-format/toon-go"
)

func fullReport() *Report {
	r := NewReport("run-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	r.Granularity = commgraph.GranularityBoth
	r.Classes = []cohesion.ClassMetrics{{
		Class:    `Shop\Cart`,
		LCOM:     2,
		Clusters: []cohesion.Cluster{{Members: []string{"add()", "$items"}}, {Members: []string{"log()"}, Unused: true}},
		Unused:   []string{"log()"},
	}}
	r.ClassPairs = []coupling.Pair{{
		From:  `Shop\Cart`,
		To:    `Shop\Item`,
		Count: 1,
		Kinds: map[resolve.Kind]int{resolve.KindCall: 1},
	}}
	r.Nodes = []coupling.NodeMetrics{{ID: `Shop\Cart`, Kind: commgraph.NodeClass, Efferent: 1, Instability: 1}}
	return r
}

// TestReportSerializesToJSON ensures the custom string types encode as plain
// strings.
func TestReportSerializesToJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(fullReport()); err != nil {
		t.Fatalf("JSON encoding failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON decoding failed: %v", err)
	}
	if decoded["granularity"] != "both" {
		t.Errorf("granularity = %v, want both", decoded["granularity"])
	}
	pairs := decoded["class_pairs"].([]any)
	kinds := pairs[0].(map[string]any)["kinds"].(map[string]any)
	if kinds["call"] != float64(1) {
		t.Errorf("kinds = %v", kinds)
	}
}

// TestReportSerializesToTOON ensures toon can render the report, which
// depends on the String methods of the custom string types.
func TestReportSerializesToTOON(t *testing.T) {
	out, err := toon.Marshal(fullReport(), toon.WithIndent(2))
	if err != nil {
		t.Fatalf("TOON encoding failed: %v", err)
	}
	s := string(out)
	for _, want := range []string{"run_id", "classes", "class_pairs", "log()"} {
		if !strings.Contains(s, want) {
			t.Errorf("TOON output missing %q:\n%s", want, s)
		}
	}
}
