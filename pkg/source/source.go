// Package source reads PHP sources from the filesystem or a git revision and
// turns them into compilation units.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/panbanda/cohere/internal/vcs"
)

// ErrTooLarge marks files skipped by Limit.
var ErrTooLarge = errors.New("file exceeds size limit")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ContentSource provides file content from a specific source. Content is
// returned without a leading UTF-8 byte order mark.
type ContentSource interface {
	Read(path string) ([]byte, error)
}

// sizer is implemented by sources that can report a file's size without
// reading it.
type sizer interface {
	Size(path string) (int64, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.TrimPrefix(content, utf8BOM), nil
}

// Size returns the size of the file on disk.
func (f *FilesystemSource) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// TreeSource reads files from a git tree.
// It is safe for concurrent use by multiple goroutines.
type TreeSource struct {
	tree vcs.Tree
	mu   sync.Mutex
}

// NewTree creates a source that reads from a git tree.
func NewTree(tree vcs.Tree) *TreeSource {
	return &TreeSource{tree: tree}
}

// Read implements ContentSource.
func (t *TreeSource) Read(path string) ([]byte, error) {
	t.mu.Lock()
	content, err := t.tree.File(path)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return bytes.TrimPrefix(content, utf8BOM), nil
}

// Files lists the tree's files.
func (t *TreeSource) Files() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Files()
}

type limited struct {
	src ContentSource
	max int64
}

// Limit rejects files larger than max bytes with ErrTooLarge, typically
// generated code nobody maintains by hand. max <= 0 returns src unchanged.
func Limit(src ContentSource, max int64) ContentSource {
	if max <= 0 {
		return src
	}
	return &limited{src: src, max: max}
}

func (l *limited) Read(path string) ([]byte, error) {
	if s, ok := l.src.(sizer); ok {
		size, err := s.Size(path)
		if err != nil {
			return nil, err
		}
		if size > l.max {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
		}
	}
	content, err := l.src.Read(path)
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > l.max {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(content))
	}
	return content, nil
}
