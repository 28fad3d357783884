// Package progress renders terminal progress for file parsing and the
// analysis phases.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for file processing.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
}

// NewTracker creates a progress bar on stderr with the given label and
// total count.
func NewTracker(label string, total int) *Tracker {
	return newTracker(os.Stderr, label, total)
}

func newTracker(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.bar.Add(1)
}

// FinishSuccess clears the bar completely (no output).
func (t *Tracker) FinishSuccess() {
	t.bar.Finish()
	t.bar.Clear()
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	t.bar.Finish()
	t.bar.Clear()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}

// Phases shows one bar per analysis phase, replacing the bar whenever the
// pipeline moves on.
type Phases struct {
	mu    sync.Mutex
	out   io.Writer
	phase analyzer.Phase
	bar   *Tracker
}

// NewPhases creates a phase display writing to w.
func NewPhases(w io.Writer) *Phases {
	return &Phases{out: w}
}

// Report is an analyzer.ProgressFunc.
func (p *Phases) Report(phase analyzer.Phase, current, total int, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || p.phase != phase {
		if p.bar != nil {
			p.bar.FinishSuccess()
		}
		p.phase = phase
		p.bar = newTracker(p.out, string(phase), total)
	}
	p.bar.Tick()
	if current >= total {
		p.bar.FinishSuccess()
		p.bar = nil
	}
}

// Done clears any bar still on screen.
func (p *Phases) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.FinishSuccess()
		p.bar = nil
	}
}

// Tracker returns an analyzer tracker wired to this display.
func (p *Phases) Tracker() *analyzer.Tracker {
	return analyzer.NewTracker(p.Report)
}
