// Package scanner expands command-line paths and git revisions into the list
// of PHP files to analyze.
package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/panbanda/cohere/internal/scanner"
	"github.com/panbanda/cohere/internal/vcs"
	"github.com/panbanda/cohere/pkg/config"
)

// ScanResult contains the result of a file scan.
type ScanResult struct {
	Files    []string
	RepoRoot string
}

// TreeResult is a scan of a git revision.
type TreeResult struct {
	Tree  vcs.Tree
	Files []string
	Ref   string
}

// Service provides file scanning functionality.
type Service struct {
	config *config.Config
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// New creates a new scanner service.
func New(opts ...Option) *Service {
	s := &Service{config: config.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanPaths scans files and directories and returns every PHP file found,
// sorted and without duplicates. Explicitly named files bypass the
// language check but not exclusions.
func (s *Service) ScanPaths(paths []string) (*ScanResult, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	seen := make(map[string]bool)
	var files []string
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, &PathError{Path: path, Err: err}
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, &PathError{Path: path, Err: err}
		}

		var found []string
		scan := scanner.NewScanner(s.config)
		if info.IsDir() {
			found, err = scan.ScanDir(absPath)
			if err != nil {
				return nil, &ScanError{Path: path, Err: err}
			}
		} else {
			ok, err := scan.ScanFile(absPath)
			if err != nil {
				return nil, &ScanError{Path: path, Err: err}
			}
			if ok {
				found = []string{absPath}
			}
		}

		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)

	result := &ScanResult{Files: files}
	if root, err := s.findGitRoot(paths[0]); err == nil {
		result.RepoRoot = root
	}
	return result, nil
}

// ScanRef lists the PHP files of a git revision of the repository that
// contains path.
func (s *Service) ScanRef(path, ref string) (*TreeResult, error) {
	root, err := s.findGitRoot(path)
	if err != nil {
		return nil, &GitError{Err: err}
	}
	tree, err := vcs.OpenTree(root, ref)
	if err != nil {
		return nil, err
	}
	all, err := tree.Files()
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = "HEAD"
	}
	return &TreeResult{
		Tree:  tree,
		Files: scanner.NewScanner(s.config).FilterPaths(all),
		Ref:   ref,
	}, nil
}

// findGitRoot finds the working tree root of the repository containing path.
func (s *Service) findGitRoot(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
		absPath = filepath.Dir(absPath)
	}

	repo, err := vcs.Open(absPath)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	return wt.Filesystem.Root(), nil
}

// PathError indicates an invalid path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "invalid path " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ScanError indicates a scanning failure.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return "failed to scan " + e.Path + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ErrNotRepository is wrapped by GitError.
var ErrNotRepository = errors.New("not a git repository (or any parent)")

// GitError indicates the path is not inside a git repository.
type GitError struct {
	Err error
}

func (e *GitError) Error() string {
	return ErrNotRepository.Error() + ": " + e.Err.Error()
}

func (e *GitError) Is(target error) bool {
	return target == ErrNotRepository
}

func (e *GitError) Unwrap() error {
	return e.Err
}
