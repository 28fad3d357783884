package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/cohere/pkg/config"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", name, err)
		}
	}
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewScanner(t *testing.T) {
	s := NewScanner(nil)
	if s == nil {
		t.Fatal("NewScanner(nil) returned nil")
	}
	if s.config == nil {
		t.Error("scanner.config should not be nil when passing nil")
	}

	cfg := config.DefaultConfig()
	s = NewScanner(cfg)
	if s.config != cfg {
		t.Error("scanner.config should be the provided config")
	}
}

func TestScanDir(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"index.php":                "<?php\n",
		"src/User.php":             "<?php\n",
		"src/views/home.phtml":     "<?php\n",
		"src/UserTest.php":         "<?php\n",
		"vendor/acme/lib/Lib.php":  "<?php\n",
		"app/vendor/Nested.php":    "<?php\n",
		"README.md":                "# readme\n",
		"config/app.inc":           "<?php\n",
		"node_modules/x/index.php": "<?php\n",
	})

	s := NewScanner(nil)
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	want := []string{"config/app.inc", "index.php", "src/User.php", "src/views/home.phtml"}
	if got := rel(t, tmpDir, result); !equal(got, want) {
		t.Errorf("ScanDir() = %v, want %v", got, want)
	}
}

func TestScanDir_Gitignore(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	writeTree(t, tmpDir, map[string]string{
		".gitignore":          "generated/\n*.cache.php\n",
		"src/A.php":           "<?php\n",
		"src/B.cache.php":     "<?php\n",
		"generated/Proxy.php": "<?php\n",
	})

	s := NewScanner(nil)
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if got := rel(t, tmpDir, result); !equal(got, []string{"src/A.php"}) {
		t.Errorf("ScanDir() = %v, want [src/A.php]", got)
	}

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = false
	result, err = NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 3 {
		t.Errorf("ScanDir() without gitignore found %d files, want 3", len(result))
	}
}

func TestScanDir_SymlinkOutsideRoot(t *testing.T) {
	outside := t.TempDir()
	writeTree(t, outside, map[string]string{"Secret.php": "<?php\n"})

	root := t.TempDir()
	writeTree(t, root, map[string]string{"A.php": "<?php\n"})
	if err := os.Symlink(outside, filepath.Join(root, "linked")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	result, err := NewScanner(nil).ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if got := rel(t, root, result); !equal(got, []string{"A.php"}) {
		t.Errorf("ScanDir() = %v, want [A.php]", got)
	}
}

func TestScanDir_Missing(t *testing.T) {
	if _, err := NewScanner(nil).ScanDir("/nonexistent/dir"); err == nil {
		t.Error("ScanDir() should fail for a missing root")
	}
}

func TestFilterPaths(t *testing.T) {
	s := NewScanner(nil)
	got := s.FilterPaths([]string{
		"src/User.php",
		"src/UserTest.php",
		"vendor/acme/Lib.php",
		"lib/vendor/X.php",
		"composer.json",
		"views/a.phtml",
	})
	want := []string{"src/User.php", "views/a.phtml"}
	if !equal(got, want) {
		t.Errorf("FilterPaths() = %v, want %v", got, want)
	}
}

func TestScanFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"User.php":     "<?php\n",
		"UserTest.php": "<?php\n",
		"notes.txt":    "x\n",
	})

	tests := []struct {
		name string
		want bool
	}{
		{"User.php", true},
		{"UserTest.php", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewScanner(nil).ScanFile(filepath.Join(tmpDir, tt.name))
			if err != nil {
				t.Fatalf("ScanFile() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ScanFile(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if ok, err := NewScanner(nil).ScanFile(tmpDir); err != nil || ok {
		t.Errorf("ScanFile(dir) = %v, %v; want false, nil", ok, err)
	}
	if _, err := NewScanner(nil).ScanFile(filepath.Join(tmpDir, "missing.php")); err == nil {
		t.Error("ScanFile() should fail for a missing file")
	}
}
