// Package vcs reads source trees from git revisions so a codebase can be
// analyzed at a commit other than the working copy.
package vcs

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Tree is a read-only view of the files of one revision.
type Tree interface {
	// File returns the content of the file at path.
	File(path string) ([]byte, error)
	// Files lists every regular file path, sorted.
	Files() ([]string, error)
}

// Open opens the repository containing path, searching parent directories.
func Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return repo, nil
}

// OpenTree resolves ref (branch, tag, hash or revision expression such as
// HEAD~2) in the repository containing repoPath.
func OpenTree(repoPath, ref string) (Tree, error) {
	repo, err := Open(repoPath)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = "HEAD"
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", hash, err)
	}
	return &gitTree{tree: tree}, nil
}

// CurrentRef returns the current branch name, or the commit hash when HEAD
// is detached.
func CurrentRef(repoPath string) (string, error) {
	repo, err := Open(repoPath)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String(), nil
}

type gitTree struct {
	tree *object.Tree
}

func (t *gitTree) File(path string) ([]byte, error) {
	f, err := t.tree.File(path)
	if err != nil {
		return nil, err
	}
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (t *gitTree) Files() ([]string, error) {
	var paths []string
	err := t.tree.Files().ForEach(func(f *object.File) error {
		if f.Mode.IsFile() {
			paths = append(paths, f.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
