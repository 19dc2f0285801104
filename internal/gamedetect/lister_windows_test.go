//go:build windows

package gamedetect

import "testing"

func TestParseTasklist(t *testing.T) {
	out := []byte("\"System Idle Process\",\"0\",\"Services\",\"0\",\"8 K\"\r\n\"cs2.exe\",\"4242\",\"Console\",\"1\",\"1,024 K\"\r\n")
	names, err := parseTasklist(out)
	if err != nil {
		t.Fatalf("parseTasklist() error = %v", err)
	}
	for _, want := range []string{"cs2.exe", "cs2", "System Idle Process"} {
		if _, ok := names[want]; !ok {
			t.Errorf("missing %q", want)
		}
	}
}
