package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

func TestClassify(t *testing.T) {
	opErr := func(err error) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: err}}
	}

	tests := []struct {
		name string
		err  error
		want domain.ProbeErrorKind
	}{
		{name: "nil", err: nil, want: domain.ProbeErrNone},
		{name: "deadline", err: context.DeadlineExceeded, want: domain.ProbeErrTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("dial: %w", context.DeadlineExceeded), want: domain.ProbeErrTimeout},
		{name: "canceled", err: context.Canceled, want: domain.ProbeErrCanceled},
		{name: "i/o timeout", err: &net.OpError{Op: "dial", Err: os.ErrDeadlineExceeded}, want: domain.ProbeErrTimeout},
		{name: "dns not found", err: &net.OpError{Op: "dial", Err: &net.DNSError{Err: "no such host", Name: "x.invalid", IsNotFound: true}}, want: domain.ProbeErrDNS},
		{name: "dns timeout", err: &net.DNSError{Err: "timeout", Name: "x", IsTimeout: true}, want: domain.ProbeErrTimeout},
		{name: "refused", err: opErr(syscall.ECONNREFUSED), want: domain.ProbeErrRefused},
		{name: "reset", err: opErr(syscall.ECONNRESET), want: domain.ProbeErrReset},
		{name: "host unreachable", err: opErr(syscall.EHOSTUNREACH), want: domain.ProbeErrUnreachable},
		{name: "net unreachable", err: opErr(syscall.ENETUNREACH), want: domain.ProbeErrUnreachable},
		{name: "socks text", err: errors.New("socks connect tcp 127.0.0.1:1080->10.0.0.1:1: connection refused"), want: domain.ProbeErrRefused},
		{name: "other", err: errors.New("boom"), want: domain.ProbeErrOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Fatalf("classify(%v)=%q, want=%q", tt.err, got, tt.want)
			}
		})
	}
}
