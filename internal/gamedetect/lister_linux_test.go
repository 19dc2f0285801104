//go:build linux

package gamedetect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestProcLister(t *testing.T) {
	root := t.TempDir()
	mk := func(pid, comm string) {
		dir := filepath.Join(root, pid)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	mk("1", "systemd")
	mk("4242", "cs2")
	mk("self", "ignored")
	if err := os.Symlink("/opt/games/dota2", filepath.Join(root, "4242", "exe")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	names, err := procLister{root: root}.ListRunningProcessNames(context.Background())
	if err != nil {
		t.Fatalf("ListRunningProcessNames() error = %v", err)
	}
	for _, want := range []string{"systemd", "cs2", "/opt/games/dota2"} {
		if _, ok := names[want]; !ok {
			t.Errorf("missing %q in %v", want, names)
		}
	}
	if _, ok := names["ignored"]; ok {
		t.Error("non-pid directory was read")
	}
}

func TestNewProcessLister_Live(t *testing.T) {
	names, err := NewProcessLister().ListRunningProcessNames(context.Background())
	if err != nil {
		t.Fatalf("ListRunningProcessNames() error = %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no processes listed, the test binary itself should appear")
	}
}
