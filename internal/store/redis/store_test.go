package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestHistoryKeys(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{HistoryKey("9f86d081884c7d659a2feaa0"), "9f86d081884c7d659a2feaa0", false},
		{HistoryKey("a:b"), "a:b", false},
		{KeyPrefixHistory, "", true},
		{"clashfun:selection", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ExtractHistoryID(tt.key)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("ExtractHistoryID(%q) = %q, %v", tt.key, got, err)
			}
		})
	}
}

func TestDecodeSamplesSkipsGarbage(t *testing.T) {
	got := decodeSamples([]string{
		`{"at":"2024-01-01T00:00:00Z","reachable":true,"latency_ms":42}`,
		`not json`,
		`{"at":"2024-01-01T00:00:01Z","reachable":false,"error_kind":"timeout"}`,
	})
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if !got[0].Reachable || got[0].LatencyMS != 42 {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Reachable || got[1].ErrorKind != "timeout" {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	s := NewStore(client)
	ctx := context.Background()

	if snap, err := s.LoadSubscription(ctx); err == nil || snap != nil {
		t.Fatalf("LoadSubscription = %v, %v", snap, err)
	}
	if _, err := s.ProbeHistory(ctx, "a", 10); err == nil {
		t.Fatal("expected error from ProbeHistory")
	}
	if err := s.AppendProbeCycle(ctx, nil); err != nil {
		t.Fatalf("nil cycle must be a no-op: %v", err)
	}
}
