package probe

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

const (
	DefaultTimeout     = 3 * time.Second
	DefaultConcurrency = 16
)

// Options bounds one probing cycle.
type Options struct {
	// Timeout caps each connection attempt.
	Timeout time.Duration
	// Concurrency is the maximum number of attempts in flight.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Prober measures node reachability with connect-and-close attempts.
// It keeps no state between calls.
type Prober struct {
	dialer Dialer
	log    logger.Logger
}

func New(dialer Dialer, log logger.Logger) *Prober {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &Prober{dialer: dialer, log: log.With(logger.Component("probe"))}
}

// Probe measures every node with at most opt.Concurrency attempts in flight.
// Results are keyed by node name; each node gets exactly one result.
//
// When ctx is cancelled no new attempts are issued, attempts already running
// finish within their own timeout and Probe returns ctx.Err().
func (p *Prober) Probe(ctx context.Context, nodes []*domain.Node, opt Options) (domain.ProbeResults, error) {
	opt = opt.withDefaults()
	results := make(domain.ProbeResults, len(nodes))
	if len(nodes) == 0 {
		return results, nil
	}

	workers := min(opt.Concurrency, len(nodes))
	jobs := make(chan *domain.Node)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				r := p.ProbeNode(ctx, n, opt.Timeout)
				mu.Lock()
				results[n.Name] = r
				mu.Unlock()
			}
		}()
	}

feed:
	for _, n := range nodes {
		select {
		case jobs <- n:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reachable := 0
	for _, r := range results {
		if r.Reachable() {
			reachable++
		}
	}
	p.log.Debug("probe cycle finished",
		logger.Int("nodes", len(nodes)),
		logger.Int("reachable", reachable),
		logger.Int("concurrency", workers),
	)
	return results, nil
}

// ProbeNode runs a single bounded connection attempt.
func (p *Prober) ProbeNode(ctx context.Context, n *domain.Node, timeout time.Duration) domain.ProbeResult {
	if !n.Valid() {
		return domain.Unreachable(n, domain.ProbeErrOther, "node has no connectable address")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(attemptCtx, "tcp", n.Address())
	if err != nil {
		kind := classify(err)
		if kind == domain.ProbeErrTimeout && errors.Is(ctx.Err(), context.Canceled) {
			kind = domain.ProbeErrCanceled
		}
		p.log.Debug("probe failed",
			logger.Node(n.Name),
			logger.String("kind", string(kind)),
			logger.Error(err),
		)
		return domain.Unreachable(n, kind, err.Error())
	}
	latency := time.Since(start)
	_ = conn.Close()
	return domain.Reachable(n, latency)
}
