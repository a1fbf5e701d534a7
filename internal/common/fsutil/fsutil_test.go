package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	for in, want := range map[string]string{
		"":                 "",
		"/var/lib/tierd":   "/var/lib/tierd",
		"~":                home,
		"~/.tierd/sess.db": filepath.Join(home, ".tierd/sess.db"),
	} {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a", "b", "sessions.db")
	if err := EnsureParentDir(p); err != nil {
		t.Fatalf("EnsureParentDir: %v", err)
	}
	fi, err := os.Stat(filepath.Join(root, "a", "b"))
	if err != nil || !fi.IsDir() {
		t.Fatalf("expected directory, err=%v", err)
	}
	// idempotent
	if err := EnsureParentDir(p); err != nil {
		t.Fatalf("second call: %v", err)
	}
	for _, skip := range []string{"", ":memory:", "file::memory:?cache=shared", "local.db"} {
		if err := EnsureParentDir(skip); err != nil {
			t.Fatalf("EnsureParentDir(%q): %v", skip, err)
		}
	}
}
