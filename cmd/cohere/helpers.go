package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/panbanda/cohere/internal/output"
	"github.com/panbanda/cohere/internal/progress"
	"github.com/panbanda/cohere/internal/service/analysis"
	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/config"
	"github.com/panbanda/cohere/pkg/engine"
	"github.com/urfave/cli/v2"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// inputFlags select what to analyze.
func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "ref",
			Usage: "Analyze a git revision (branch, tag, or commit) instead of the working tree",
		},
		&cli.StringFlag{
			Name:  "units",
			Usage: "Analyze pre-lowered units from a JSON file (- for stdin) instead of PHP sources",
		},
	}
}

// outputFlags control rendering.
func outputFlags() []cli.Flag {
	return []cli.Flag{
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
		&cli.IntFlag{
			Name:  "top",
			Value: -1,
			Usage: "Show top N rows per table, 0 for all (default from config)",
		},
		&cli.StringFlag{
			Name:  "class",
			Usage: `Only report classes matching a glob, e.g. "App\Http\**"`,
		},
	}
}

func withFlags(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

// configDir is where the config file is looked up when --config is unset.
func configDir(c *cli.Context) string {
	path := getPaths(c)[0]
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return filepath.Dir(path)
	}
	return path
}

// loadConfig reads --config, or the config file next to the analyzed path,
// and validates it.
func loadConfig(c *cli.Context) (*config.Config, string, error) {
	var (
		cfg    *config.Config
		source string
		err    error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
		source = path
	} else {
		cfg, source, err = config.LoadOrDefault(configDir(c))
	}
	if err != nil {
		return nil, source, err
	}
	if dir := c.String("cache-dir"); dir != "" {
		cfg.Cache.Enabled = true
		cfg.Cache.Dir = dir
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, source, err
	}
	return cfg, source, nil
}

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

func colored(c *cli.Context, cfg *config.Config) bool {
	return cfg.Output.Color && !c.Bool("no-color") && !color.NoColor
}

func renderOptions(c *cli.Context, cfg *config.Config) output.Options {
	opts := output.Options{
		LCOMWarning:        cfg.Thresholds.LCOMWarning,
		LCOMCritical:       cfg.Thresholds.LCOMCritical,
		InstabilityWarning: cfg.Thresholds.InstabilityWarning,
		Top:                cfg.Output.Top,
		Colored:            colored(c, cfg),
	}
	if top := c.Int("top"); top >= 0 {
		opts.Top = top
	}
	return opts
}

func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := c.String("format")
	if format == "" {
		format = cfg.Output.Format
	}
	f := output.ParseFormat(format)
	if path := c.String("output"); path != "" {
		return output.NewFormatter(f, path, false)
	}
	return output.NewWriterFormatter(c.App.Writer, f, colored(c, cfg)), nil
}

// render writes view in the selected format.
func render(c *cli.Context, cfg *config.Config, view output.Renderable) error {
	f, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(view)
}

// showProgress reports whether progress bars belong on stderr.
func showProgress(c *cli.Context) bool {
	if c.App.ErrWriter != os.Stderr {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// session is one command's configuration and analysis service.
type session struct {
	cfg *config.Config
	svc *analysis.Service
	log *slog.Logger
}

func newSession(c *cli.Context, opts ...analysis.Option) (*session, error) {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := newLogger(c)
	svc, err := analysis.New(append([]analysis.Option{
		analysis.WithConfig(cfg),
		analysis.WithLogger(logger),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, svc: svc, log: logger}, nil
}

// analyze runs the pipeline over whatever input the flags select. A run
// that completed with a fatal diagnostic is returned along with its error.
func (s *session) analyze(c *cli.Context, extra ...engine.Option) (*analysis.Run, error) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if showProgress(c) {
		phases := progress.NewPhases(os.Stderr)
		defer phases.Done()
		ctx = analyzer.WithTracker(ctx, phases.Tracker())
	}

	if path := c.String("units"); path != "" {
		r, closeFn, err := openInput(c, path)
		if err != nil {
			return nil, err
		}
		defer closeFn()
		return s.svc.DecodeAndAnalyze(ctx, r, extra...)
	}
	if ref := c.String("ref"); ref != "" {
		return s.svc.AnalyzeRef(ctx, getPaths(c)[0], ref, extra...)
	}
	return s.svc.AnalyzePaths(ctx, getPaths(c), extra...)
}

func openInput(c *cli.Context, path string) (io.Reader, func(), error) {
	if path == "-" {
		return c.App.Reader, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open units: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// runReport analyzes, filters by --class and renders the view built from
// the report. Fatal diagnostics are rendered before the error is returned.
func runReport(c *cli.Context, view func(*analysis.Run, output.Options) (output.Renderable, error), extra ...engine.Option) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	run, runErr := s.analyze(c, extra...)
	if run == nil {
		return runErr
	}
	if pattern := c.String("class"); pattern != "" {
		filtered, err := run.Report.FilterClasses(pattern)
		if err != nil {
			return err
		}
		run.Report = filtered
	}
	v, err := view(run, renderOptions(c, s.cfg))
	if err != nil {
		if runErr != nil {
			return runErr
		}
		return err
	}
	if err := render(c, s.cfg, v); err != nil {
		return err
	}
	return runErr
}
