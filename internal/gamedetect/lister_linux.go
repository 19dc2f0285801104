//go:build linux

package gamedetect

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// NewProcessLister returns the lister for the current platform.
func NewProcessLister() ProcessLister { return procLister{root: "/proc"} }

// procLister reads /proc/<pid>/comm and the /proc/<pid>/exe link.
type procLister struct {
	root string
}

func (p procLister) ListRunningProcessNames(ctx context.Context) (map[string]struct{}, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() || !isPID(e.Name()) {
			continue
		}
		dir := filepath.Join(p.root, e.Name())
		// Processes may exit between ReadDir and here; skip them.
		if comm, err := os.ReadFile(filepath.Join(dir, "comm")); err == nil {
			if name := strings.TrimSpace(string(comm)); name != "" {
				names[name] = struct{}{}
			}
		}
		if exe, err := os.Readlink(filepath.Join(dir, "exe")); err == nil && exe != "" {
			names[strings.TrimSuffix(exe, " (deleted)")] = struct{}{}
		}
	}
	return names, nil
}

func isPID(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
