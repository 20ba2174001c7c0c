package gateway

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// routes builds the in-scope router. Anything it does not match, including
// a known path with another method, goes to the delegate.
func (g *Gateway) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	p := g.cfg.Prefix
	r.Get(p+"/config", g.configHandler)
	r.Post(p+"/shell", g.shellHandler)

	r.NotFound(forward(g.delegate))
	r.MethodNotAllowed(forward(g.delegate))
	return r
}
