package domain

import "testing"

func TestNode_HistoryID(t *testing.T) {
	base := Node{Name: "tokyo-1", Protocol: "ss", Server: "10.0.0.1", Port: 8388, Cipher: "aes-128-gcm", Password: "pw"}

	tests := []struct {
		name   string
		mutate func(n *Node)
		same   bool
	}{
		{"identical", func(*Node) {}, true},
		{"region label only", func(n *Node) { n.Region = "JP" }, true},
		{"other server", func(n *Node) { n.Server = "10.9.9.9" }, false},
		{"other port", func(n *Node) { n.Port = 443 }, false},
		{"other password", func(n *Node) { n.Password = "rotated" }, false},
		{"other name", func(n *Node) { n.Name = "tokyo-2" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := base, base
			tt.mutate(&b)
			if got := a.HistoryID() == b.HistoryID(); got != tt.same {
				t.Fatalf("same id = %v, want %v", got, tt.same)
			}
		})
	}

	if id := base.HistoryID(); len(id) != 24 {
		t.Fatalf("id %q, want 24 hex chars", id)
	}
}
