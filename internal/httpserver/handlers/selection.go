package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

type selectRequest struct {
	Name string `json:"name"`
}

// Select pins a node by exact name or unique substring.
func Select(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			badRequest(w, `expected {"name": "<node name>"}`)
			return
		}
		sel, err := d.Accelerator.SelectNode(r.Context(), strings.TrimSpace(req.Name))
		if err != nil {
			writeError(w, d, err)
			return
		}
		d.Logger.Info("node selected via api", logger.Node(sel.Name()))
		writeJSON(w, http.StatusOK, newSelectionView(sel))
	}
}

// AutoSelect clears any pin and selects the fastest node.
func AutoSelect(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, err := d.Accelerator.AutoSelect(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, newSelectionView(sel))
	}
}

// Refresh queues a health refresh.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Refresh.Trigger() {
			d.Logger.Info("manual refresh triggered via endpoint", logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
			return
		}
		d.Logger.Warn("refresh already queued", logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"status": "already queued"})
	}
}
