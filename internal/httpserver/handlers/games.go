package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
)

type gameMatchView struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Process string   `json:"process"`
	Ports   []int    `json:"ports,omitempty"`
	Regions []string `json:"regions,omitempty"`
}

// Games samples running processes now.
func Games(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matches, err := d.Games.Detect(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		out := make([]gameMatchView, 0, len(matches))
		for _, m := range matches {
			out = append(out, gameMatchView{
				ID:      m.Game.ID,
				Name:    m.Game.Name,
				Process: m.Process,
				Ports:   m.Game.Ports,
				Regions: m.Game.Regions,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"games": out})
	}
}
