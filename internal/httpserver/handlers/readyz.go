package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready        bool   `json:"ready"`
	Subscription bool   `json:"subscription"`
	Session      string `json:"session"`
}

// Readyz reports ready once a subscription is loaded.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := d.Accelerator.Status()
		resp := readyzResponse{
			Ready:        st.Subscription != nil,
			Subscription: st.Subscription != nil,
			Session:      string(st.Session.State),
		}
		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
