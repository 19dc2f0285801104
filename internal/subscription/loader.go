package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/utils"
)

const (
	DefaultFetchTimeout  = 15 * time.Second
	DefaultMaxBytes      = 5 * 1024 * 1024
	DefaultMaxRedirects  = 5
	subscriptionUA       = "clash.meta"
	codeFetchFailed      = "FETCH_FAILED"
	codeFetchTimeout     = "FETCH_TIMEOUT"
	codeFetchTooLarge    = "FETCH_TOO_LARGE"
	codeFetchInvalidPath = "FETCH_INVALID_SOURCE"
)

var errTooManyRedirects = errors.New("too many redirects")

// FetchError is returned when a subscription source cannot be read.
type FetchError struct {
	AppError domain.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Timeout reports whether the fetch failed because it ran out of time.
func (e *FetchError) Timeout() bool { return e.AppError.Code == codeFetchTimeout }

func fetchError(source, code, message string, cause error) *FetchError {
	return &FetchError{
		AppError: domain.AppError{
			Code:    code,
			Message: message,
			Stage:   domain.StageFetch,
			Source:  source,
		},
		Cause: cause,
	}
}

// Payload is raw subscription content plus its provenance.
type Payload struct {
	Source    string
	Data      []byte
	FetchedAt time.Time
}

// LoaderOptions bounds remote fetches.
type LoaderOptions struct {
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
}

// Loader reads a subscription from an http(s) URL or a local file path.
type Loader struct {
	client   *http.Client
	maxBytes int64
	now      func() time.Time
}

// NewLoader creates a loader. Zero options take the package defaults.
func NewLoader(opt LoaderOptions) *Loader {
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultFetchTimeout
	}
	if opt.MaxBytes <= 0 {
		opt.MaxBytes = DefaultMaxBytes
	}
	if opt.MaxRedirects <= 0 {
		opt.MaxRedirects = DefaultMaxRedirects
	}
	maxRedirects := opt.MaxRedirects
	return &Loader{
		client: &http.Client{
			Timeout: opt.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return errTooManyRedirects
				}
				if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
					return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
				}
				return nil
			},
		},
		maxBytes: opt.MaxBytes,
		now:      time.Now,
	}
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Load reads the source. Remote sources are fetched, anything else is read from disk.
func (l *Loader) Load(ctx context.Context, source string) (*Payload, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fetchError(source, codeFetchInvalidPath, "subscription source is empty", nil)
	}
	if IsRemote(source) {
		return l.fetch(ctx, source)
	}
	return l.readFile(source)
}

func (l *Loader) readFile(path string) (*Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fetchError(path, codeFetchInvalidPath, "cannot open subscription file", err)
	}
	defer utils.Close(f)

	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes+1))
	if err != nil {
		return nil, fetchError(path, codeFetchFailed, "cannot read subscription file", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fetchError(path, codeFetchTooLarge, fmt.Sprintf("subscription exceeds %d bytes", l.maxBytes), nil)
	}
	return &Payload{Source: path, Data: data, FetchedAt: l.now()}, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fetchError(rawURL, codeFetchInvalidPath, "invalid subscription url", err)
	}
	req.Header.Set("User-Agent", subscriptionUA)

	resp, err := l.client.Do(req)
	if err != nil {
		var ne net.Error
		if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fetchError(rawURL, codeFetchTimeout, "subscription fetch timed out", err)
		}
		return nil, fetchError(rawURL, codeFetchFailed, "subscription fetch failed", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fetchError(rawURL, codeFetchFailed, fmt.Sprintf("upstream returned status %d", resp.StatusCode), nil)
	}

	// Read one extra byte so overflow is detected deterministically.
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fetchError(rawURL, codeFetchTimeout, "subscription read timed out", err)
		}
		return nil, fetchError(rawURL, codeFetchFailed, "cannot read subscription body", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fetchError(rawURL, codeFetchTooLarge, fmt.Sprintf("subscription exceeds %d bytes", l.maxBytes), nil)
	}
	return &Payload{Source: rawURL, Data: data, FetchedAt: l.now()}, nil
}
