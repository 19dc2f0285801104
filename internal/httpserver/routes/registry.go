package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
	"github.com/MrSnakeDoc/clashfun/internal/httpserver/mw"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
	// Guard builds a middleware once the runtime deps are known.
	Guard func(d deps.Deps) Middleware
)

type group struct {
	name   string
	reg    Registrar
	guards []Guard
}

var registry []group

// Register adds a route group guarded by the given guards, applied in order.
func Register(name string, reg Registrar, guards ...Guard) {
	registry = append(registry, group{name: name, reg: reg, guards: guards})
}

// Names lists the registered groups in registration order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, g := range registry {
		names = append(names, g.name)
	}
	return names
}

// Called once from httpserver.NewRouter
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range registry {
		if len(g.guards) == 0 {
			g.reg(r, d)
			continue
		}
		mws := make([]Middleware, 0, len(g.guards))
		for _, guard := range g.guards {
			mws = append(mws, guard(d))
		}
		g.reg(r.With(mws...), d)
	}
}

// LocalNetworks restricts a group to AllowedCIDRS.
func LocalNetworks(d deps.Deps) Middleware {
	return mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
}

// PinnedHosts restricts a group to AllowedHosts.
func PinnedHosts(d deps.Deps) Middleware {
	return mw.EnforceHost(d.AllowedHosts, d.Logger)
}

// ScriptedClients rejects state-changing requests a browser page could forge.
func ScriptedClients(d deps.Deps) Middleware {
	return mw.RequireNonSimple(d.Logger)
}
