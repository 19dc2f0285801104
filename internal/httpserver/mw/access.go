package mw

import (
	"encoding/json"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
	"github.com/MrSnakeDoc/clashfun/internal/utils"
)

func forbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(domain.ErrorResponse{Error: domain.AppError{
		Code:    "FORBIDDEN",
		Message: message,
	}})
}

// AllowOnlyCIDRS allows only specific IPs/CIDRs. If the list is empty, it does NOT filter (passthrough).
// trustProxy should be true when running behind a trusted reverse proxy.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("request from disallowed address",
					logger.String("remote_ip", ip),
					logger.String("path", r.URL.Path))
				forbidden(w, "client address not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnforceHost rejects requests whose Host header is not listed. Patterns
// may be "*.example.com"; a pattern without a port matches any port. An
// empty list is a passthrough.
//
// The control API is usually bound to loopback, where a browser page can
// still reach it through a rebound DNS name; pinning Host closes that path.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	if len(allowedHosts) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, pattern := range allowedHosts {
				if matchHost(r.Host, pattern) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Warn("request with disallowed host", logger.String("host", r.Host))
			forbidden(w, "host not allowed")
		})
	}
}

func matchHost(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(pattern)
	if host == pattern || pattern == "*" {
		return true
	}
	if _, _, err := net.SplitHostPort(pattern); err == nil {
		return false
	}
	pattern = trimBrackets(pattern)
	h := trimBrackets(utils.ParseHostNoPort(host))
	if h == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(h, pattern[1:])
	}
	return false
}

func trimBrackets(h string) string {
	return strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
}

// ClientHeader marks a request as coming from a script or CLI rather than a
// browser form.
const ClientHeader = "X-Clashfun-Client"

// RequireNonSimple rejects state-changing requests a browser could send
// cross-site without a CORS preflight: they must carry a JSON body or
// ClientHeader. Safe methods pass through.
func RequireNonSimple(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get(ClientHeader) != "" || isJSON(r.Header.Get("Content-Type")) {
				next.ServeHTTP(w, r)
				return
			}
			log.Warn("rejected request without json body or client header",
				logger.String("path", r.URL.Path),
				logger.String("origin", r.Header.Get("Origin")))
			forbidden(w, "send application/json or the "+ClientHeader+" header")
		})
	}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}
