package selection

import (
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

type sample struct {
	name    string
	latency time.Duration // negative means unreachable
	region  string
}

func buildResults(samples ...sample) domain.ProbeResults {
	out := make(domain.ProbeResults, len(samples))
	for _, s := range samples {
		n := &domain.Node{Name: s.name, Protocol: "ss", Server: "192.0.2.1", Port: 443, Region: s.region}
		if s.latency < 0 {
			out[s.name] = domain.Unreachable(n, domain.ProbeErrTimeout, "timeout")
			continue
		}
		out[s.name] = domain.Reachable(n, s.latency)
	}
	return out
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func TestSelect_LowestLatency(t *testing.T) {
	tests := []struct {
		name     string
		samples  []sample
		previous string
		epsilon  time.Duration
		filter   Filter
		want     string
	}{
		{
			name:    "minimal latency wins",
			samples: []sample{{"a", ms(80), ""}, {"b", ms(20), ""}, {"c", ms(50), ""}},
			want:    "b",
		},
		{
			name:    "unreachable never chosen",
			samples: []sample{{"a", -1, ""}, {"b", ms(300), ""}},
			want:    "b",
		},
		{
			name:     "equal latency keeps previous",
			samples:  []sample{{"a", ms(40), ""}, {"b", ms(40), ""}},
			previous: "b",
			want:     "b",
		},
		{
			name:    "equal latency without previous picks smallest name",
			samples: []sample{{"zeta", ms(40), ""}, {"alpha", ms(40), ""}},
			want:    "alpha",
		},
		{
			name:     "within epsilon keeps previous",
			samples:  []sample{{"a", ms(40), ""}, {"b", ms(43), ""}},
			previous: "b",
			epsilon:  ms(5),
			want:     "b",
		},
		{
			name:     "outside epsilon switches",
			samples:  []sample{{"a", ms(40), ""}, {"b", ms(60), ""}},
			previous: "b",
			epsilon:  ms(5),
			want:     "a",
		},
		{
			name:     "previous unreachable is dropped",
			samples:  []sample{{"a", ms(40), ""}, {"b", -1, ""}},
			previous: "b",
			want:     "a",
		},
		{
			name:    "region filter",
			samples: []sample{{"hk-1", ms(10), "HK"}, {"jp-1", ms(30), "JP"}, {"Tokyo JP 2", ms(20), ""}},
			filter:  ByRegion("jp"),
			want:    "Tokyo JP 2",
		},
		{
			name:    "pinned node",
			samples: []sample{{"a", ms(10), ""}, {"b", ms(90), ""}},
			filter:  Only("b"),
			want:    "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := buildResults(tt.samples...)
			var prev *domain.Selection
			if tt.previous != "" {
				prev = &domain.Selection{Node: results[tt.previous].Node}
			}

			got, err := NewPolicy(tt.epsilon).Select(results, prev, tt.filter)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if got.Name() != tt.want {
				t.Fatalf("Select()=%q, want=%q", got.Name(), tt.want)
			}
			if got.Node != results[tt.want].Node {
				t.Fatal("selection must reference the probed node, not a copy")
			}
			if _, ok := got.Result.Latency(); !ok {
				t.Fatal("selection justified by an unreachable result")
			}
			if got.SelectedAt.IsZero() {
				t.Fatal("SelectedAt not set")
			}
		})
	}
}

func TestSelect_NoReachableNode(t *testing.T) {
	tests := []struct {
		name    string
		samples []sample
		filter  Filter
		want    Reason
	}{
		{name: "empty", samples: nil, want: ReasonEmptySubscription},
		{name: "all unreachable", samples: []sample{{"a", -1, ""}, {"b", -1, ""}}, want: ReasonAllUnreachable},
		{name: "all unreachable with filter", samples: []sample{{"a", -1, "HK"}}, filter: ByRegion("HK"), want: ReasonAllUnreachable},
		{name: "filtered out", samples: []sample{{"a", ms(5), "HK"}}, filter: ByRegion("US"), want: ReasonFilteredOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(0).Select(buildResults(tt.samples...), nil, tt.filter)
			if !errors.Is(err, ErrNoReachableNode) {
				t.Fatalf("error = %v, want ErrNoReachableNode", err)
			}
			var se *Error
			if !errors.As(err, &se) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if se.Reason != tt.want {
				t.Fatalf("reason=%q, want=%q", se.Reason, tt.want)
			}
			if se.AppError.Stage != domain.StageSelect {
				t.Fatalf("stage=%q", se.AppError.Stage)
			}
		})
	}
}

func TestSelect_Deterministic(t *testing.T) {
	results := buildResults(
		sample{"n1", ms(12), ""}, sample{"n2", ms(12), ""}, sample{"n3", ms(14), ""},
		sample{"n4", ms(11), ""}, sample{"n5", -1, ""},
	)
	p := NewPolicy(ms(3))
	first, err := p.Select(results, nil, nil)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	for i := 0; i < 50; i++ {
		got, err := p.Select(results, nil, nil)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if got.Name() != first.Name() {
			t.Fatalf("run %d picked %q, first run picked %q", i, got.Name(), first.Name())
		}
	}
	if first.Name() != "n1" {
		t.Fatalf("Select()=%q, want n1 (smallest name within epsilon of n4)", first.Name())
	}
}

func TestRank(t *testing.T) {
	results := buildResults(
		sample{"c", ms(30), ""}, sample{"down-b", -1, ""}, sample{"a", ms(10), ""},
		sample{"down-a", -1, ""}, sample{"b", ms(10), ""},
	)
	want := []string{"a", "b", "c", "down-a", "down-b"}
	got := Rank(results)
	if len(got) != len(want) {
		t.Fatalf("len=%d, want=%d", len(got), len(want))
	}
	for i, r := range got {
		if r.Node.Name != want[i] {
			t.Fatalf("rank[%d]=%q, want=%q", i, r.Node.Name, want[i])
		}
	}
}
