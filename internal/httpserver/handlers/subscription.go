package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
	"github.com/MrSnakeDoc/clashfun/internal/subscription"
)

// DefaultBodyLimit caps an inline subscription body.
const DefaultBodyLimit = 5 * 1024 * 1024

type subscriptionRequest struct {
	Source string `json:"source"`
	Format string `json:"format"`
}

// Subscription replaces the current subscription. A JSON body names a source
// to fetch; any other body is the subscription text itself.
func Subscription(d deps.Deps) http.HandlerFunc {
	limit := d.BodyLimit
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(w http.ResponseWriter, r *http.Request) {
		format := subscription.ParseFormat(r.URL.Query().Get("format"))
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				badRequest(w, "request body too large")
				return
			}
			badRequest(w, "cannot read request body")
			return
		}

		ctx := r.Context()
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/json" {
			var req subscriptionRequest
			if err := json.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.Source) == "" {
				badRequest(w, `expected {"source": "<url or path>"}`)
				return
			}
			if req.Format != "" {
				format = subscription.ParseFormat(req.Format)
			}
			d.Logger.Info("subscription replace requested", logger.String(logger.KeySource, req.Source))
			rep, err := d.Accelerator.Load(ctx, strings.TrimSpace(req.Source), format)
			if err != nil {
				writeError(w, d, err)
				return
			}
			writeJSON(w, http.StatusOK, newReportView(rep))
			return
		}

		if len(strings.TrimSpace(string(body))) == 0 {
			badRequest(w, "empty subscription body")
			return
		}
		rep, err := d.Accelerator.SetSubscription(ctx, &subscription.Payload{
			Source:    "inline",
			Data:      body,
			FetchedAt: time.Now(),
		}, format)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, newReportView(rep))
	}
}
