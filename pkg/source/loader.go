package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/parser"
	"github.com/zeebo/blake3"
)

// DefaultCacheSize is the number of parsed files kept between loads.
const DefaultCacheSize = 4096

// FileError records a file that could not be read or parsed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// LoadResult is the outcome of one Load call.
type LoadResult struct {
	// Units follow input order, then namespace block order.
	Units  []ir.Unit
	Files  int
	Parsed int
	Cached int
	Errors []*FileError
}

// Store persists parsed units beyond the lifetime of a Loader. Entries are
// only valid for content with the given digest.
type Store interface {
	Get(path string, digest [32]byte) ([]ir.Unit, bool)
	Put(path string, digest [32]byte, units []ir.Unit) error
}

type cached struct {
	digest [32]byte
	units  []ir.Unit
}

// Loader parses files into units. Parsed files are kept in an LRU cache
// keyed by path; an entry is reused only while the content digest matches,
// so repeated loads of a mostly unchanged tree reparse only what changed.
// Loader is safe for concurrent use.
type Loader struct {
	src      ContentSource
	cache    *lru.Cache[string, cached]
	store    Store
	workers  int
	logger   *slog.Logger
	progress func(path string)
}

// Option configures a Loader.
type Option func(*Loader)

// WithWorkers sets the number of parallel parsers.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		l.workers = n
	}
}

// WithLogger sets the logger for per-file failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithStore adds a second cache level consulted on in-memory misses.
func WithStore(store Store) Option {
	return func(l *Loader) {
		l.store = store
	}
}

// WithProgress registers a callback invoked after each file.
func WithProgress(fn func(path string)) Option {
	return func(l *Loader) {
		l.progress = fn
	}
}

// NewLoader creates a loader reading from src with a cache of size entries.
// A size <= 0 selects DefaultCacheSize.
func NewLoader(src ContentSource, size int, opts ...Option) (*Loader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, cached](size)
	if err != nil {
		return nil, fmt.Errorf("create parse cache: %w", err)
	}
	l := &Loader{
		src:    src,
		cache:  cache,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type loaded struct {
	units  []ir.Unit
	cached bool
	err    *FileError
}

// Load reads and parses paths in parallel. Files that fail to read or parse
// are reported in LoadResult.Errors and skipped; the returned error is only
// set when ctx is cancelled.
func (l *Loader) Load(ctx context.Context, paths []string) (*LoadResult, error) {
	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.StartPhase(analyzer.PhaseParse, len(paths))
	}
	results := analyzer.MapWithProgress(paths, l.workers, func(_ int, path string) loaded {
		if ctx.Err() != nil {
			return loaded{}
		}
		return l.load(ctx, path)
	}, func(i int) {
		if tracker != nil {
			tracker.Tick(paths[i])
		}
		if l.progress != nil {
			l.progress(paths[i])
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &LoadResult{Files: len(paths)}
	for _, r := range results {
		if r.err != nil {
			l.logger.Warn("skipping file", "path", r.err.Path, "error", r.err.Err)
			res.Errors = append(res.Errors, r.err)
			continue
		}
		if r.cached {
			res.Cached++
		} else {
			res.Parsed++
		}
		res.Units = append(res.Units, r.units...)
	}
	return res, nil
}

func (l *Loader) load(ctx context.Context, path string) loaded {
	content, err := l.src.Read(path)
	if err != nil {
		return loaded{err: &FileError{Path: path, Err: err}}
	}
	digest := blake3.Sum256(content)
	if c, ok := l.cache.Get(path); ok && c.digest == digest {
		return loaded{units: c.units, cached: true}
	}
	if l.store != nil {
		if units, ok := l.store.Get(path, digest); ok {
			l.cache.Add(path, cached{digest: digest, units: units})
			return loaded{units: units, cached: true}
		}
	}

	units, err := parser.ParseUnits(ctx, path, content)
	if err != nil {
		return loaded{err: &FileError{Path: path, Err: err}}
	}
	l.cache.Add(path, cached{digest: digest, units: units})
	if l.store != nil {
		if err := l.store.Put(path, digest, units); err != nil {
			l.logger.Debug("store parsed units", "path", path, "error", err)
		}
	}
	return loaded{units: units}
}

// Forget drops path from the cache.
func (l *Loader) Forget(path string) {
	l.cache.Remove(path)
}

// Len returns the number of cached files.
func (l *Loader) Len() int {
	return l.cache.Len()
}
