package version

import (
	"strings"
	"testing"
)

func TestGet_ReflectsLinkVariables(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version, Commit = "v1.2.3", "abc1234"
	b := Get()
	if b.Version != "v1.2.3" || b.Commit != "abc1234" {
		t.Fatalf("got %+v", b)
	}
	if b.GoVersion == "" || b.BuildDate == "" {
		t.Fatalf("runtime fields should be populated: %+v", b)
	}

	s := b.String()
	for _, want := range []string{"clashfun v1.2.3", "commit=abc1234", "go="} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
