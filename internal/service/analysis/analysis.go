// Package analysis ties scanning, parsing and the pipeline together for the
// command line, the MCP server and watch mode.
package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/panbanda/cohere/internal/cache"
	scannerSvc "github.com/panbanda/cohere/internal/service/scanner"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/config"
	"github.com/panbanda/cohere/pkg/engine"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/source"
)

// Service orchestrates code analysis operations. The filesystem loader and
// its parse cache live as long as the service, so repeated runs reparse
// only changed files.
type Service struct {
	config   *config.Config
	logger   *slog.Logger
	observer engine.Observer
	scanner  *scannerSvc.Service
	loader   *source.Loader
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithLogger sets the logger passed to the loader and the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithObserver sets the pipeline observer.
func WithObserver(o engine.Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// New creates a new analysis service.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		config: config.DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scanner = scannerSvc.New(scannerSvc.WithConfig(s.config))

	loaderOpts := []source.Option{
		source.WithWorkers(s.config.Analysis.Workers),
		source.WithLogger(s.logger),
	}
	if c := s.config.Cache; c.Enabled {
		store, err := cache.New(c.Dir, c.TTL, true)
		if err != nil {
			return nil, fmt.Errorf("open parse cache: %w", err)
		}
		loaderOpts = append(loaderOpts, source.WithStore(store))
	}
	loader, err := source.NewLoader(source.Limit(source.NewFilesystem(), s.config.Analysis.MaxFileSize), s.config.Watch.CacheSize, loaderOpts...)
	if err != nil {
		return nil, err
	}
	s.loader = loader
	return s, nil
}

// Config returns the configuration in use.
func (s *Service) Config() *config.Config {
	return s.config
}

// Scanner returns the scanner service.
func (s *Service) Scanner() *scannerSvc.Service {
	return s.scanner
}

// Run is the outcome of one analysis.
type Run struct {
	*engine.Result

	// Files lists the inputs in load order; empty for pre-lowered units.
	Files []string
	Load  *source.LoadResult
}

// EngineOptions derives engine options from the configuration. extra is
// applied last and overrides it.
func (s *Service) EngineOptions(extra ...engine.Option) []engine.Option {
	a, r := s.config.Analysis, s.config.Resolver
	opts := []engine.Option{
		engine.WithGranularity(commgraph.Granularity(a.Granularity)),
		engine.WithWorkers(a.Workers),
		engine.WithIncludeInherited(a.IncludeInherited),
		engine.WithExternals(r.Externals),
		engine.WithBuiltins(r.Builtins),
		engine.WithCycleLimits(a.MaxCycleSCC, a.MaxCycles),
		engine.WithInstabilityThreshold(s.config.Thresholds.InstabilityWarning),
		engine.WithLogger(s.logger),
	}
	if s.observer != nil {
		opts = append(opts, engine.WithObserver(s.observer))
	}
	return append(opts, extra...)
}

// AnalyzePaths scans paths, parses every PHP file found and runs the
// pipeline over the result.
func (s *Service) AnalyzePaths(ctx context.Context, paths []string, extra ...engine.Option) (*Run, error) {
	scan, err := s.scanner.ScanPaths(paths)
	if err != nil {
		return nil, err
	}
	if len(scan.Files) == 0 {
		return nil, ErrNoFiles
	}
	return s.analyzeFiles(ctx, s.loader, scan.Files, extra)
}

// AnalyzeRef analyzes the committed PHP files of a git revision of the
// repository containing path. The working tree is not consulted.
func (s *Service) AnalyzeRef(ctx context.Context, path, ref string, extra ...engine.Option) (*Run, error) {
	tree, err := s.scanner.ScanRef(path, ref)
	if err != nil {
		return nil, err
	}
	if len(tree.Files) == 0 {
		return nil, fmt.Errorf("%w at %s", ErrNoFiles, tree.Ref)
	}
	loader, err := source.NewLoader(source.Limit(source.NewTree(tree.Tree), s.config.Analysis.MaxFileSize), len(tree.Files),
		source.WithWorkers(s.config.Analysis.Workers),
		source.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	return s.analyzeFiles(ctx, loader, tree.Files, extra)
}

// AnalyzeUnits runs the pipeline over already lowered units.
func (s *Service) AnalyzeUnits(ctx context.Context, units []ir.Unit, extra ...engine.Option) (*Run, error) {
	res, err := engine.New(s.EngineOptions(extra...)...).Run(ctx, units)
	if res == nil {
		return nil, err
	}
	return &Run{Result: res}, err
}

// DecodeAndAnalyze reads units in their JSON interchange form and analyzes
// them.
func (s *Service) DecodeAndAnalyze(ctx context.Context, r io.Reader, extra ...engine.Option) (*Run, error) {
	units, err := ir.DecodeUnits(r)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeUnits(ctx, units, extra...)
}

func (s *Service) analyzeFiles(ctx context.Context, loader *source.Loader, files []string, extra []engine.Option) (*Run, error) {
	loaded, err := loader.Load(ctx, files)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded sources",
		"files", loaded.Files, "parsed", loaded.Parsed, "cached", loaded.Cached, "errors", len(loaded.Errors))

	run, err := s.AnalyzeUnits(ctx, loaded.Units, extra...)
	if run == nil {
		return nil, err
	}
	run.Files = files
	run.Load = loaded
	return run, err
}

// Forget drops cached parses so the next run rereads the files.
func (s *Service) Forget(paths ...string) {
	for _, p := range paths {
		s.loader.Forget(p)
	}
}

// CachedFiles returns the number of parsed files held in the cache.
func (s *Service) CachedFiles() int {
	return s.loader.Len()
}
