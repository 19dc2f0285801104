package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
	"github.com/MrSnakeDoc/clashfun/internal/httpserver/handlers"
)

func init() { Register("api", registerAPI, LocalNetworks, PinnedHosts, ScriptedClients) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		api.Get("/status", handlers.Status(d))
		api.Get("/nodes", handlers.Nodes(d))
		api.Get("/nodes/{name}/history", handlers.History(d))
		api.Get("/games", handlers.Games(d))

		api.Post("/subscription", handlers.Subscription(d))
		api.Post("/select", handlers.Select(d))
		api.Post("/auto-select", handlers.AutoSelect(d))
		api.Post("/refresh", handlers.Refresh(d))
		api.Post("/start", handlers.Start(d))
		api.Post("/stop", handlers.Stop(d))
	})
}
