package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
	"github.com/MrSnakeDoc/clashfun/internal/httpserver/handlers"
)

func init() {
	Register("liveness", registerLiveness)
	Register("infra", registerInfra, LocalNetworks)
}

func registerLiveness(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
}

func registerInfra(r chi.Router, d deps.Deps) {
	r.Get("/readyz", handlers.Readyz(d))
	r.Get("/infra", handlers.Infra(d))
}
