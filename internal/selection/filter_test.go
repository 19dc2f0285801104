package selection

import (
	"errors"
	"testing"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

func TestFindNode(t *testing.T) {
	nodes := []*domain.Node{
		{Name: "HK 01"}, {Name: "HK 02"}, {Name: "Tokyo"}, {Name: "hk"},
	}

	tests := []struct {
		query   string
		want    string
		wantErr error
	}{
		{query: "Tokyo", want: "Tokyo"},
		{query: "tok", want: "Tokyo"},
		{query: "hk", want: "hk"},
		{query: "HK 0", wantErr: ErrAmbiguousNode},
		{query: "paris", wantErr: ErrNodeNotFound},
		{query: "", wantErr: ErrNodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := FindNode(nodes, tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FindNode(%q) error = %v, want %v", tt.query, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindNode(%q) error = %v", tt.query, err)
			}
			if got.Name != tt.want {
				t.Fatalf("FindNode(%q)=%q, want=%q", tt.query, got.Name, tt.want)
			}
		})
	}

	_, err := FindNode(nodes, "HK 0")
	var le *LookupError
	if !errors.As(err, &le) || len(le.Candidates) != 2 {
		t.Fatalf("ambiguous lookup should list candidates, got %v", err)
	}
}

func TestFilters(t *testing.T) {
	hk := &domain.Node{Name: "edge-1", Region: "HK"}
	jp := &domain.Node{Name: "Osaka JP"}

	if ByRegion() != nil || ByRegion(" ", "") != nil {
		t.Fatal("empty region list must disable filtering")
	}
	f := ByRegion("hk")
	if !f(hk) || f(jp) {
		t.Fatal("ByRegion(hk) mismatch")
	}
	if !ByRegion("jp")(jp) {
		t.Fatal("ByRegion should match a region token in the name")
	}

	if And() != nil || And(nil, nil) != nil {
		t.Fatal("And without filters must be nil")
	}
	both := And(ByRegion("hk", "jp"), Only("edge-1"))
	if !both(hk) || both(jp) {
		t.Fatal("And mismatch")
	}
}
