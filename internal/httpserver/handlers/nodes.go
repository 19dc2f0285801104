package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/MrSnakeDoc/clashfun/internal/accelerator"
	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
)

// Nodes lists every node, fastest first and unreachable last.
func Nodes(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views := lo.Map(d.Accelerator.Nodes(), func(v accelerator.NodeView, _ int) nodeView { return newNodeView(v) })
		if r.URL.Query().Get("reachable") == "true" {
			views = lo.Filter(views, func(v nodeView, _ int) bool { return v.Reachable != nil && *v.Reachable })
		}
		writeJSON(w, http.StatusOK, map[string]any{"nodes": views, "count": len(views)})
	}
}

// History returns recent probe samples for one node.
func History(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		samples, err := d.Accelerator.History(r.Context(), name)
		if err != nil {
			writeError(w, d, err)
			return
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				badRequest(w, "limit must be a positive integer")
				return
			}
			if n < len(samples) {
				samples = samples[:n]
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"node": name, "samples": samples})
	}
}
