package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, content, msg string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add(name)
	require.NoError(t, err)
	_, err = w.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	commitFile(t, repo, dir, "src/User.php", "<?php class User {}\n", "first")
	commitFile(t, repo, dir, "src/User.php", "<?php class User { public $name; }\n", "second")
	commitFile(t, repo, dir, "README.md", "docs\n", "third")
	return dir
}

func TestOpenTree(t *testing.T) {
	dir := initRepo(t)

	tree, err := OpenTree(dir, "")
	require.NoError(t, err)

	files, err := tree.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "src/User.php"}, files)

	content, err := tree.File("src/User.php")
	require.NoError(t, err)
	assert.Contains(t, string(content), "public $name")

	_, err = tree.File("missing.php")
	assert.Error(t, err)
}

func TestOpenTree_Revision(t *testing.T) {
	dir := initRepo(t)

	tree, err := OpenTree(dir, "HEAD~2")
	require.NoError(t, err)

	files, err := tree.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/User.php"}, files)

	content, err := tree.File("src/User.php")
	require.NoError(t, err)
	assert.Equal(t, "<?php class User {}\n", string(content))
}

func TestOpenTree_Errors(t *testing.T) {
	_, err := OpenTree(t.TempDir(), "HEAD")
	assert.Error(t, err)

	_, err = OpenTree(initRepo(t), "no-such-branch")
	assert.Error(t, err)
}

func TestOpen_DetectsParent(t *testing.T) {
	dir := initRepo(t)
	repo, err := Open(filepath.Join(dir, "src"))
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestCurrentRef(t *testing.T) {
	dir := initRepo(t)
	ref, err := CurrentRef(dir)
	require.NoError(t, err)
	assert.Equal(t, "master", ref)
}
