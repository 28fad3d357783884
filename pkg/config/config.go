// Package config loads cohere settings from TOML, YAML or JSON files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/analyzer/coupling"
	gotoml "github.com/pelletier/go-toml"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "markdown", "toon", "yaml"}

// Config holds all configuration options for cohere.
type Config struct {
	Analysis   AnalysisConfig  `koanf:"analysis" toml:"analysis"`
	Resolver   ResolverConfig  `koanf:"resolver" toml:"resolver"`
	Thresholds ThresholdConfig `koanf:"thresholds" toml:"thresholds"`
	Exclude    ExcludeConfig   `koanf:"exclude" toml:"exclude"`
	Output     OutputConfig    `koanf:"output" toml:"output"`
	Watch      WatchConfig     `koanf:"watch" toml:"watch"`
	Cache      CacheConfig     `koanf:"cache" toml:"cache"`
}

// AnalysisConfig controls the pipeline.
type AnalysisConfig struct {
	Granularity      string `koanf:"granularity" toml:"granularity"`
	Workers          int    `koanf:"workers" toml:"workers"` // 0 = 2x NumCPU
	IncludeInherited bool   `koanf:"include_inherited" toml:"include_inherited"`
	MaxCycleSCC      int    `koanf:"max_cycle_scc" toml:"max_cycle_scc"`
	MaxCycles        int    `koanf:"max_cycles" toml:"max_cycles"`
	MaxFileSize      int64  `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = unlimited
}

// ResolverConfig controls reference resolution.
type ResolverConfig struct {
	// Externals are class and function names that resolve to nothing
	// without counting as unresolved.
	Externals []string `koanf:"externals" toml:"externals"`
	// Builtins treats PHP's built-in functions and classes as externals.
	Builtins bool `koanf:"builtins" toml:"builtins"`
}

// ThresholdConfig defines metric thresholds used for highlighting.
type ThresholdConfig struct {
	LCOMWarning        int     `koanf:"lcom_warning" toml:"lcom_warning"`
	LCOMCritical       int     `koanf:"lcom_critical" toml:"lcom_critical"`
	InstabilityWarning float64 `koanf:"instability_warning" toml:"instability_warning"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"`
	Color  bool   `koanf:"color" toml:"color"`
	Top    int    `koanf:"top" toml:"top"` // 0 = all rows
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	DebounceMS int `koanf:"debounce_ms" toml:"debounce_ms"`
	CacheSize  int `koanf:"cache_size" toml:"cache_size"`
}

// CacheConfig controls the on-disk parse cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours, 0 = never expires
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Granularity:      string(commgraph.GranularityBoth),
			IncludeInherited: true,
			MaxCycleSCC:      coupling.DefaultMaxCycleSCC,
			MaxCycles:        coupling.DefaultMaxCycles,
			MaxFileSize:      2 << 20,
		},
		Thresholds: ThresholdConfig{
			LCOMWarning:        2,
			LCOMCritical:       4,
			InstabilityWarning: 0.8,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*Test.php",
				"*.blade.php",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".cohere",
				"cache",
				"storage",
			},
			Gitignore: true,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
			Top:    20,
		},
		Watch: WatchConfig{
			DebounceMS: 500,
			CacheSize:  4096,
		},
		Cache: CacheConfig{
			Dir: ".cohere/cache",
			TTL: 24 * 7,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the first config file found in the standard locations.
func Find(dir string) (string, bool) {
	configNames := []string{
		"cohere.toml",
		"cohere.yaml",
		"cohere.yml",
		"cohere.json",
		".cohere.toml",
		".cohere.yaml",
		".cohere.yml",
		".cohere.json",
	}

	for _, sub := range []string{".", ".cohere"} {
		for _, name := range configNames {
			path := filepath.Join(dir, sub, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

// LoadOrDefault loads the config found in dir, or returns defaults when
// there is none. A config file that exists but fails to load is an error.
func LoadOrDefault(dir string) (*Config, string, error) {
	path, ok := Find(dir)
	if !ok {
		return DefaultConfig(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Validate checks option values.
func (c *Config) Validate() error {
	var errs []error
	if !commgraph.Granularity(c.Analysis.Granularity).Valid() {
		errs = append(errs, fmt.Errorf("analysis.granularity %q: want class, member or both", c.Analysis.Granularity))
	}
	if c.Analysis.Workers < 0 {
		errs = append(errs, fmt.Errorf("analysis.workers must be >= 0, got %d", c.Analysis.Workers))
	}
	if c.Analysis.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_file_size must be >= 0, got %d", c.Analysis.MaxFileSize))
	}
	if c.Analysis.MaxCycleSCC < 0 || c.Analysis.MaxCycles < 0 {
		errs = append(errs, errors.New("analysis cycle limits must be >= 0"))
	}
	if c.Thresholds.LCOMWarning < 1 || c.Thresholds.LCOMCritical < c.Thresholds.LCOMWarning {
		errs = append(errs, fmt.Errorf("thresholds: need 1 <= lcom_warning <= lcom_critical, got %d and %d",
			c.Thresholds.LCOMWarning, c.Thresholds.LCOMCritical))
	}
	if c.Thresholds.InstabilityWarning < 0 || c.Thresholds.InstabilityWarning > 1 {
		errs = append(errs, fmt.Errorf("thresholds.instability_warning must be in [0, 1], got %g", c.Thresholds.InstabilityWarning))
	}
	if !validFormat(c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format %q: want one of %s", c.Output.Format, strings.Join(Formats, ", ")))
	}
	if c.Output.Top < 0 {
		errs = append(errs, fmt.Errorf("output.top must be >= 0, got %d", c.Output.Top))
	}
	if c.Watch.DebounceMS < 0 || c.Watch.CacheSize < 0 {
		errs = append(errs, errors.New("watch limits must be >= 0"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be >= 0, got %d", c.Cache.TTL))
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir is required when the cache is enabled"))
	}
	for _, p := range c.Exclude.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("exclude pattern %q: %w", p, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Dump renders the config as TOML.
func (c *Config) Dump() ([]byte, error) {
	out, err := gotoml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

func validFormat(f string) bool {
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	// Check directory exclusions
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	// Check pattern exclusions
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
