// Package console provides the per-run HTML and JSON routes.
package console

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the console feature routes.
func SetupRoutes(router chi.Router, deps Deps) error {
	handlers, err := NewHandlers(deps)
	if err != nil {
		return err
	}

	router.Get("/", handlers.Index)
	router.Route("/runs/{runid}", func(r chi.Router) {
		r.Get("/", handlers.RunInfo)
		r.Get("/schema", handlers.Schema)
		r.Get("/query", handlers.QueryForm)
		r.Post("/query", handlers.Query)
		r.Get("/activate", handlers.Activate)
		r.Post("/activate", handlers.Activate)
	})

	return nil
}
