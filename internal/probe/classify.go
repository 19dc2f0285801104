package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// classify maps a dial error to the kind reported in a ProbeResult.
func classify(err error) domain.ProbeErrorKind {
	if err == nil {
		return domain.ProbeErrNone
	}
	switch {
	case errors.Is(err, context.Canceled):
		return domain.ProbeErrCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return domain.ProbeErrTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return domain.ProbeErrTimeout
		}
		return domain.ProbeErrDNS
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return domain.ProbeErrRefused
	case errors.Is(err, syscall.ECONNRESET):
		return domain.ProbeErrReset
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return domain.ProbeErrUnreachable
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.ProbeErrTimeout
	}

	// SOCKS replies and Windows socket errors only surface as text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "refused"):
		return domain.ProbeErrRefused
	case strings.Contains(msg, "unreachable"):
		return domain.ProbeErrUnreachable
	case strings.Contains(msg, "reset by peer"):
		return domain.ProbeErrReset
	case strings.Contains(msg, "no such host"):
		return domain.ProbeErrDNS
	}
	return domain.ProbeErrOther
}
