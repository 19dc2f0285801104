package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

// countingDialer records the peak number of concurrent attempts.
type countingDialer struct {
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (d *countingDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	d.calls.Add(1)
	cur := d.inflight.Add(1)
	defer d.inflight.Add(-1)
	for {
		old := d.peak.Load()
		if cur <= old || d.peak.CompareAndSwap(old, cur) {
			break
		}
	}

	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c1, c2 := net.Pipe()
	_ = c2.Close()
	return c1, nil
}

// blockDialer never connects on its own.
type blockDialer struct{}

func (blockDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testNodes(n int) []*domain.Node {
	out := make([]*domain.Node, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &domain.Node{
			Name:     "node-" + strconv.Itoa(i),
			Protocol: "ss",
			Server:   "192.0.2.1",
			Port:     1000 + i,
		})
	}
	return out
}

func nodeFor(t *testing.T, name, addr string) *domain.Node {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port %q: %v", portStr, err)
	}
	return &domain.Node{Name: name, Protocol: "ss", Server: host, Port: port}
}

// closedPort returns a loopback address nothing listens on.
func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func acceptLoop(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func TestProbe_ConcurrencyBound(t *testing.T) {
	tests := []struct {
		nodes, bound int
	}{
		{nodes: 20, bound: 3},
		{nodes: 5, bound: 10},
		{nodes: 8, bound: 1},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.nodes)+"/"+strconv.Itoa(tt.bound), func(t *testing.T) {
			d := &countingDialer{delay: 5 * time.Millisecond}
			p := New(d, logger.NewNop())

			res, err := p.Probe(context.Background(), testNodes(tt.nodes), Options{Timeout: time.Second, Concurrency: tt.bound})
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if len(res) != tt.nodes {
				t.Fatalf("results=%d, want=%d", len(res), tt.nodes)
			}
			if int(d.calls.Load()) != tt.nodes {
				t.Fatalf("calls=%d, want one attempt per node", d.calls.Load())
			}
			if peak := int(d.peak.Load()); peak > tt.bound || peak < 1 {
				t.Fatalf("peak concurrency=%d, bound=%d", peak, tt.bound)
			}
			for name, r := range res {
				if !r.Reachable() {
					t.Fatalf("%s unreachable: %s", name, r.ErrorKind())
				}
			}
		})
	}
}

func TestProbe_TimeoutIsUnreachable(t *testing.T) {
	p := New(blockDialer{}, logger.NewNop())
	nodes := testNodes(4)

	start := time.Now()
	res, err := p.Probe(context.Background(), nodes, Options{Timeout: 30 * time.Millisecond, Concurrency: 4})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("probe blocked for %v", elapsed)
	}
	for _, n := range nodes {
		r := res[n.Name]
		if r.Reachable() {
			t.Fatalf("%s reachable, want timeout", n.Name)
		}
		if r.ErrorKind() != domain.ProbeErrTimeout {
			t.Fatalf("%s kind=%q, want timeout", n.Name, r.ErrorKind())
		}
		if _, ok := r.Latency(); ok {
			t.Fatalf("%s has a latency despite failing", n.Name)
		}
	}
}

func TestProbe_LoopbackReachableAndRefused(t *testing.T) {
	ln := acceptLoop(t)
	up := nodeFor(t, "up", ln.Addr().String())
	down := nodeFor(t, "down", closedPort(t))

	p := New(nil, logger.NewNop())
	res, err := p.Probe(context.Background(), []*domain.Node{up, down}, Options{Timeout: time.Second, Concurrency: 2})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if r := res["up"]; !r.Reachable() {
		t.Fatalf("up unreachable: %s %s", r.ErrorKind(), r.ErrorDetail())
	}
	if l, ok := res["up"].Latency(); !ok || l < 0 {
		t.Fatalf("up latency=%v,%v", l, ok)
	}
	if r := res["down"]; r.Reachable() || r.ErrorKind() != domain.ProbeErrRefused {
		t.Fatalf("down kind=%q reachable=%v, want refused", r.ErrorKind(), r.Reachable())
	}
}

func TestProbe_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &countingDialer{delay: time.Millisecond}
	res, err := New(d, logger.NewNop()).Probe(ctx, testNodes(50), Options{Concurrency: 2})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if res != nil {
		t.Fatalf("partial results leaked: %d", len(res))
	}
}

func TestProbe_CancelMidCycleWaitsForAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &countingDialer{delay: 20 * time.Millisecond}

	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		_, err = New(d, logger.NewNop()).Probe(ctx, testNodes(100), Options{Timeout: time.Second, Concurrency: 4})
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	wg.Wait()

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if n := d.inflight.Load(); n != 0 {
		t.Fatalf("%d attempts still in flight after Probe returned", n)
	}
	if calls := d.calls.Load(); calls >= 100 {
		t.Fatalf("calls=%d, cancellation did not stop the feed", calls)
	}
}

func TestProbe_EmptyAndInvalid(t *testing.T) {
	p := New(&countingDialer{}, logger.NewNop())
	res, err := p.Probe(context.Background(), nil, Options{})
	if err != nil || len(res) != 0 {
		t.Fatalf("empty probe = %v, %v", res, err)
	}

	bad := &domain.Node{Name: "bad", Server: "", Port: 0}
	r := p.ProbeNode(context.Background(), bad, time.Second)
	if r.Reachable() || r.ErrorKind() != domain.ProbeErrOther {
		t.Fatalf("invalid node result=%q", r.ErrorKind())
	}
}
