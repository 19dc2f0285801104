package probe

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"
)

// UpstreamEnv makes probes honour ALL_PROXY / NO_PROXY from the environment.
const UpstreamEnv = "env"

// Dialer opens the transport connection a probe measures.
// *net.Dialer and the x/net/proxy SOCKS5 dialer both satisfy it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewDialer builds the probe transport.
//
//	""                    direct TCP connect
//	"env"                 proxy taken from ALL_PROXY / NO_PROXY
//	"socks5://host:port"  connect through a SOCKS5 upstream
func NewDialer(upstream string) (Dialer, error) {
	direct := &net.Dialer{}
	upstream = strings.TrimSpace(upstream)
	switch upstream {
	case "", "direct":
		return direct, nil
	case UpstreamEnv:
		return asContextDialer(proxy.FromEnvironmentUsing(direct)), nil
	}

	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid probe upstream %q: %w", upstream, err)
	}
	d, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, fmt.Errorf("unsupported probe upstream %q: %w", upstream, err)
	}
	return asContextDialer(d), nil
}

func asContextDialer(d proxy.Dialer) Dialer {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd
	}
	return blockingDialer{d: d}
}

// blockingDialer adapts a dialer without context support. When ctx ends
// first the attempt keeps running in the background and its connection,
// if any, is closed on arrival.
type blockingDialer struct {
	d proxy.Dialer
}

func (b blockingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := b.d.Dial(network, address)
		resultCh <- dialResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-resultCh:
		return r.conn, r.err
	}
}
