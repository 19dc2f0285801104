package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
)

func Start(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, err := d.Accelerator.Start(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"state":      "running",
			"proxy_port": d.ProxyPort,
			"selection":  newSelectionView(sel),
		})
	}
}

func Stop(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Accelerator.Stop(r.Context()); err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"state": "stopped"})
	}
}
