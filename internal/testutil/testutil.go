// Package testutil builds throwaway PHP projects and git repositories for
// tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// WriteFile writes content to a file in the real filesystem.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// CreateFileTree creates multiple files from a map of path -> content.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, name), content)
	}
}

// ShopFiles is a two-class project: Cart uses Item, and Cart::log touches
// nothing else in its class.
var ShopFiles = map[string]string{
	"src/Cart.php": `<?php
namespace Shop;

class Cart
{
    private array $items = [];
    private int $total = 0;

    public function add(Item $item): void
    {
        $this->items[] = $item;
        $this->total += $item->price();
    }

    public function total(): int
    {
        return $this->total;
    }

    public function log(): void
    {
    }
}
`,
	"src/Item.php": `<?php
namespace Shop;

class Item
{
    private int $price = 0;

    public function price(): int
    {
        return $this->price;
    }
}
`,
}

// PHPProject creates a temporary directory holding files and returns it.
func PHPProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	CreateFileTree(t, dir, files)
	return dir
}

// InitRepo turns dir into a git repository and commits everything in it.
func InitRepo(t *testing.T, dir string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit(%s) error: %v", dir, err)
	}
	Commit(t, repo, "initial")
	return repo
}

// Commit stages every change in the worktree and commits it.
func Commit(t *testing.T, repo *git.Repository, msg string) {
	t.Helper()
	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error: %v", err)
	}
	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	_, err = w.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Commit(%q) error: %v", msg, err)
	}
}
