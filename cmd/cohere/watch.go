package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/cohere/internal/observability"
	"github.com/panbanda/cohere/internal/output"
	"github.com/panbanda/cohere/internal/service/analysis"
	"github.com/panbanda/cohere/pkg/models"
	"github.com/panbanda/cohere/pkg/watch"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for file changes and re-analyze",
		ArgsUsage: "[path]",
		Description: `Runs a full analysis, then reanalyzes whenever PHP files change. Only
changed files are reparsed. Each run prints the classes whose LCOM changed.

With --metrics-addr, Prometheus metrics are served on /metrics.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before a batch of changes is analyzed (default from config)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics and /health on this address, e.g. :9090",
			},
			&cli.StringFlag{
				Name:  "class",
				Usage: "Only report classes matching a glob",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	absPath, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	metrics := observability.NewMetrics()
	s, err := newSession(c, analysis.WithObserver(metrics))
	if err != nil {
		return err
	}

	if addr := c.String("metrics-addr"); addr != "" {
		srv := observability.NewServer(addr, metrics, s.log)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(ctx)
		}()
		color.Green("Metrics on http://%s/metrics", srv.Addr())
	}

	debounce := c.Duration("debounce")
	if debounce <= 0 {
		debounce = time.Duration(s.cfg.Watch.DebounceMS) * time.Millisecond
	}
	watcher, err := watch.NewWatcher(absPath, s.cfg, debounce)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()
	watcher.SetLogger(s.log)

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	w := &watchLoop{
		svc:     s.svc,
		metrics: metrics,
		path:    absPath,
		class:   c.String("class"),
		out:     c.App.Writer,
		opts:    renderOptions(c, s.cfg),
	}

	if err := w.run(ctx, nil); err != nil && !errors.Is(err, analysis.ErrNoFiles) {
		return err
	}
	watcher.SetCallback(func(changes []watch.Change) {
		if err := w.run(ctx, changes); err != nil {
			color.Red("Error: %v", err)
		}
	})

	color.Cyan("Watching %s (Ctrl+C to stop)", absPath)
	err = watcher.Start(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(c.App.Writer, "\nStopping watch...")
		return nil
	}
	return err
}

// watchLoop reanalyzes after each batch and reports what moved.
type watchLoop struct {
	svc     *analysis.Service
	metrics *observability.Metrics
	path    string
	class   string
	out     io.Writer
	opts    output.Options
	prev    *models.Report
}

func (w *watchLoop) run(ctx context.Context, changes []watch.Change) error {
	if len(changes) > 0 {
		w.metrics.WatchBatch()
		paths := make([]string, len(changes))
		for i, ch := range changes {
			paths[i] = ch.Path
		}
		w.svc.Forget(paths...)
		fmt.Fprintf(w.out, "\n%d file(s) changed\n", len(changes))
	}

	run, err := w.svc.AnalyzePaths(ctx, []string{w.path})
	w.metrics.RunFinished(err)
	if run == nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	w.metrics.Loaded(run.Load.Parsed, run.Load.Cached)

	report := run.Report
	if w.class != "" {
		filtered, ferr := report.FilterClasses(w.class)
		if ferr != nil {
			// Warn once; later runs report every class.
			color.New(color.FgYellow).Fprintf(w.out, "Ignoring --class: %v\n", ferr)
			w.class = ""
		} else {
			report = filtered
		}
	}

	if w.prev == nil {
		view := output.CohesionView(report, w.opts)
		if oerr := output.NewWriterFormatter(w.out, output.FormatText, w.opts.Colored).Output(view); oerr != nil {
			return fmt.Errorf("render report: %w", oerr)
		}
	} else {
		lines := lcomChanges(w.prev, report)
		if len(lines) == 0 {
			fmt.Fprintln(w.out, "No LCOM changes.")
		}
		for _, line := range lines {
			fmt.Fprintln(w.out, line)
		}
	}
	if d := report.Diagnostics; d.Total() > 0 {
		color.Yellow("%d diagnostics", d.Total())
	}
	w.prev = report
	return err
}

// lcomChanges lists classes that appeared, disappeared or changed LCOM
// between two reports, sorted by class name.
func lcomChanges(prev, cur *models.Report) []string {
	before := make(map[string]int, len(prev.Classes))
	for _, c := range prev.Classes {
		before[c.Class] = c.LCOM
	}
	var lines []string
	seen := make(map[string]bool, len(cur.Classes))
	for _, c := range cur.Classes {
		seen[c.Class] = true
		old, ok := before[c.Class]
		switch {
		case !ok:
			lines = append(lines, fmt.Sprintf("+ %s LCOM %d", c.Class, c.LCOM))
		case old != c.LCOM:
			lines = append(lines, fmt.Sprintf("~ %s LCOM %d -> %d", c.Class, old, c.LCOM))
		}
	}
	for class := range before {
		if !seen[class] {
			lines = append(lines, fmt.Sprintf("- %s", class))
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i][2:] < lines[j][2:] })
	return lines
}
