//go:build !linux && !windows

package gamedetect

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
)

// NewProcessLister returns the lister for the current platform.
func NewProcessLister() ProcessLister { return psLister{} }

// psLister parses `ps -axo comm=`, which prints executable paths on macOS and the BSDs.
type psLister struct{}

func (psLister) ListRunningProcessNames(ctx context.Context) (map[string]struct{}, error) {
	out, err := exec.CommandContext(ctx, "ps", "-axo", "comm=").Output()
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		names[line] = struct{}{}
		names[filepath.Base(line)] = struct{}{}
	}
	return names, sc.Err()
}
