package analysis

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/panbanda/cohere/internal/testutil"
	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/config"
	"github.com/panbanda/cohere/pkg/engine"
	"github.com/panbanda/cohere/pkg/ir"
	pkgtestutil "github.com/panbanda/cohere/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := New(opts...)
	require.NoError(t, err)
	return svc
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig()
	svc := newService(t, WithConfig(cfg))
	assert.Same(t, cfg, svc.Config())
	assert.NotNil(t, svc.Scanner())
	assert.Zero(t, svc.CachedFiles())
}

func TestAnalyzePaths(t *testing.T) {
	dir := testutil.PHPProject(t, testutil.ShopFiles)
	svc := newService(t)

	run, err := svc.AnalyzePaths(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Len(t, run.Files, 2)
	assert.Equal(t, 2, run.Load.Parsed)
	assert.Empty(t, run.Load.Errors)

	cart, ok := run.Report.Class(`Shop\Cart`)
	require.True(t, ok)
	assert.Equal(t, 2, cart.LCOM)
	assert.Equal(t, []string{"log()"}, cart.Unused)
	assert.NotNil(t, run.Graph)
	assert.Equal(t, 2, svc.CachedFiles())
}

func TestAnalyzePaths_ReusesParses(t *testing.T) {
	dir := testutil.PHPProject(t, testutil.ShopFiles)
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.AnalyzePaths(ctx, []string{dir})
	require.NoError(t, err)

	testutil.WriteFile(t, filepath.Join(dir, "src", "Item.php"), "<?php\nnamespace Shop;\nclass Item {}\n")
	run, err := svc.AnalyzePaths(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Load.Parsed)
	assert.Equal(t, 1, run.Load.Cached)

	svc.Forget(filepath.Join(dir, "src", "Cart.php"))
	run, err = svc.AnalyzePaths(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Load.Parsed)
}

func TestAnalyzePaths_DiskCache(t *testing.T) {
	dir := testutil.PHPProject(t, testutil.ShopFiles)
	cfg := config.DefaultConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")

	run, err := newService(t, WithConfig(cfg)).AnalyzePaths(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 2, run.Load.Parsed)

	// A new service has an empty memory cache but shares the disk cache.
	run, err = newService(t, WithConfig(cfg)).AnalyzePaths(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 0, run.Load.Parsed)
	assert.Equal(t, 2, run.Load.Cached)

	cart, ok := run.Report.Class(`Shop\Cart`)
	require.True(t, ok)
	assert.Equal(t, 2, cart.LCOM)
}

func TestAnalyzePaths_NoFiles(t *testing.T) {
	dir := testutil.PHPProject(t, map[string]string{"README.md": "docs"})

	_, err := newService(t).AnalyzePaths(context.Background(), []string{dir})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestAnalyzePaths_ProgressTracker(t *testing.T) {
	dir := testutil.PHPProject(t, testutil.ShopFiles)

	seen := make(map[analyzer.Phase]int)
	tracker := analyzer.NewTracker(func(phase analyzer.Phase, current, total int, item string) {
		seen[phase]++
	})
	ctx := analyzer.WithTracker(context.Background(), tracker)

	_, err := newService(t, WithConfig(func() *config.Config {
		cfg := config.DefaultConfig()
		cfg.Analysis.Workers = 1
		return cfg
	}())).AnalyzePaths(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 2, seen[analyzer.PhaseParse])
	assert.Equal(t, 2, seen[analyzer.PhaseCollect])
}

func TestAnalyzeRef(t *testing.T) {
	dir := testutil.PHPProject(t, testutil.ShopFiles)
	testutil.InitRepo(t, dir)
	// Not committed, so not analyzed.
	testutil.WriteFile(t, filepath.Join(dir, "src", "Draft.php"), "<?php\nnamespace Shop;\nclass Draft {}\n")

	run, err := newService(t).AnalyzeRef(context.Background(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/Cart.php", "src/Item.php"}, run.Files)

	_, ok := run.Report.Class(`Shop\Draft`)
	assert.False(t, ok)
	_, ok = run.Report.Class(`Shop\Cart`)
	assert.True(t, ok)
}

func TestAnalyzeUnits_Options(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.Granularity = string(commgraph.GranularityClass)
	svc := newService(t, WithConfig(cfg))

	run, err := svc.AnalyzeUnits(context.Background(), pkgtestutil.NamespacesFixture())
	require.NoError(t, err)
	assert.Equal(t, commgraph.GranularityClass, run.Report.Granularity)
	assert.Empty(t, run.Report.Classes)
	assert.NotEmpty(t, run.Report.ClassPairs)

	// Extra options override the configuration.
	run, err = svc.AnalyzeUnits(context.Background(), pkgtestutil.NamespacesFixture(),
		engine.WithGranularity(commgraph.GranularityBoth))
	require.NoError(t, err)
	assert.NotEmpty(t, run.Report.Classes)
}

func TestAnalyzeUnits_Externals(t *testing.T) {
	cfg := config.DefaultConfig()
	svc := newService(t, WithConfig(cfg))

	run, err := svc.AnalyzeUnits(context.Background(), pkgtestutil.NamespacesFixture())
	require.NoError(t, err)
	assert.Equal(t, 1, run.Report.Diagnostics.UnresolvedReferences)

	cfg.Resolver.Externals = []string{"GlobalFunction"}
	run, err = svc.AnalyzeUnits(context.Background(), pkgtestutil.NamespacesFixture())
	require.NoError(t, err)
	assert.Zero(t, run.Report.Diagnostics.UnresolvedReferences)
}

func TestDecodeAndAnalyze(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ir.EncodeUnits(&buf, pkgtestutil.LCOMFixture()))

	run, err := newService(t).DecodeAndAnalyze(context.Background(), &buf)
	require.NoError(t, err)

	lcom, ok := run.Report.Class("LCOM")
	require.True(t, ok)
	assert.Equal(t, 5, lcom.LCOM)
}

func TestDecodeAndAnalyze_Invalid(t *testing.T) {
	_, err := newService(t).DecodeAndAnalyze(context.Background(), bytes.NewBufferString("{not json"))
	assert.Error(t, err)
}

func TestAnalyzeUnits_Duplicates(t *testing.T) {
	units := []ir.Unit{
		{Path: "a.php", Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "Same"}}},
		{Path: "b.php", Decls: []ir.Decl{{Kind: ir.DeclClass, Name: "Same"}}},
	}

	run, err := newService(t).AnalyzeUnits(context.Background(), units)
	require.Error(t, err)
	assert.True(t, engine.IsFatal(err))
	require.NotNil(t, run)
	assert.Equal(t, 1, run.Report.Diagnostics.DuplicateDeclarations)
}

func TestAnalyzePaths_Cancelled(t *testing.T) {
	dir := testutil.PHPProject(t, testutil.ShopFiles)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(t).AnalyzePaths(ctx, []string{dir})
	assert.True(t, errors.Is(err, context.Canceled))
}
