//go:build windows

package gamedetect

import (
	"bytes"
	"context"
	"encoding/csv"
	"os/exec"
	"strings"
)

// NewProcessLister returns the lister for the current platform.
func NewProcessLister() ProcessLister { return tasklistLister{} }

// tasklistLister parses `tasklist /fo csv /nh`.
type tasklistLister struct{}

func (tasklistLister) ListRunningProcessNames(ctx context.Context) (map[string]struct{}, error) {
	out, err := exec.CommandContext(ctx, "tasklist", "/fo", "csv", "/nh").Output()
	if err != nil {
		return nil, err
	}
	return parseTasklist(out)
}

func parseTasklist(out []byte) (map[string]struct{}, error) {
	r := csv.NewReader(bytes.NewReader(out))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		name := strings.TrimSpace(rec[0])
		if name == "" {
			continue
		}
		names[name] = struct{}{}
		names[strings.TrimSuffix(name, ".exe")] = struct{}{}
	}
	return names, nil
}
