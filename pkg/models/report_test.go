package models

import (
	"errors"
	"testing"
	"time"

	"github.com/panbanda/cohere/pkg/analyzer/cohesion"
	"github.com/panbanda/cohere/pkg/analyzer/coupling"
	"github.com/panbanda/cohere/pkg/analyzer/resolve"
	"github.com/panbanda/cohere/pkg/symbols"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	r := NewReport("run", time.Unix(0, 0))
	r.Classes = []cohesion.ClassMetrics{
		{Class: `App\Http\UserController`, LCOM: 3},
		{Class: `App\Domain\User`, LCOM: 1},
		{Class: `Lib\Util`, LCOM: 2},
	}
	r.Nodes = []coupling.NodeMetrics{
		{ID: `App\Domain\User`},
		{ID: `Lib\Util`},
	}
	r.ClassPairs = []coupling.Pair{
		{From: `App\Http\UserController`, To: `App\Domain\User`, Count: 2},
		{From: `Lib\Util`, To: `Lib\Other`, Count: 1},
	}
	r.ClassCycles = []coupling.Cycle{
		{Nodes: []string{`Lib\A`, `Lib\B`}},
		{Nodes: []string{`App\Domain\User`, `Lib\Util`}},
	}
	return r
}

func TestReport_FilterClasses(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		classes []string
		pairs   int
		cycles  int
	}{
		{"single segment star", `App\*`, nil, 0, 0},
		{"deep star", `App\**`, []string{`App\Http\UserController`, `App\Domain\User`}, 1, 1},
		{"exact", `Lib\Util`, []string{`Lib\Util`}, 1, 1},
		{"suffix", `**User`, []string{`App\Domain\User`}, 1, 1},
		{"alternatives", `{Lib,App\Domain}\*`, []string{`App\Domain\User`, `Lib\Util`}, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := sampleReport().FilterClasses(tt.pattern)
			require.NoError(t, err)

			var got []string
			for _, c := range out.Classes {
				got = append(got, c.Class)
			}
			assert.Equal(t, tt.classes, got)
			assert.Len(t, out.ClassPairs, tt.pairs)
			assert.Len(t, out.ClassCycles, tt.cycles)
		})
	}
}

func TestReport_FilterClassesKeepsOriginal(t *testing.T) {
	r := sampleReport()
	_, err := r.FilterClasses(`Lib\*`)
	require.NoError(t, err)
	assert.Len(t, r.Classes, 3)

	_, err = r.FilterClasses(`[`)
	assert.Error(t, err)
}

func TestReport_Class(t *testing.T) {
	r := sampleReport()
	m, ok := r.Class(`Lib\Util`)
	require.True(t, ok)
	assert.Equal(t, 2, m.LCOM)

	_, ok = r.Class("Missing")
	assert.False(t, ok)
}

func TestDiagnostics(t *testing.T) {
	d := Diagnostics{
		DuplicateDeclarations: 1,
		TraitConflicts:        1,
		UnresolvedReferences:  4,
		Duplicates: []*symbols.DuplicateDeclarationError{
			{FQN: "A", First: symbols.Location{Path: "a.php", Line: 1}, Second: symbols.Location{Path: "b.php", Line: 2}},
		},
		Conflicts: []*symbols.TraitConflictError{{Class: "C", Member: "m()", Kept: "T1", Dropped: "T2"}},
		Malformed: []*resolve.MalformedInputWarning{{Path: "c.php", Reason: "bad"}},
	}

	assert.Equal(t, 6, d.Total())
	err := d.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, symbols.ErrDuplicateDeclaration))

	errs := d.Errors()
	require.Len(t, errs, 3)
	var dup *symbols.DuplicateDeclarationError
	assert.True(t, errors.As(errs[0], &dup))

	r := &Report{Diagnostics: d}
	assert.True(t, r.Fatal())
	assert.NoError(t, (&Diagnostics{}).Err())
}
