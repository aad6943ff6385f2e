// Package mcp provides the token-authenticated, JSON:API-shaped machine API.
package mcp

import (
	"github.com/go-chi/chi/v5"

	"github.com/weppcloud/queryengine/internal/auth"
)

// SetupRoutes mounts the MCP routes under /mcp.
func SetupRoutes(router chi.Router, deps Deps) error {
	handlers := NewHandlers(deps)

	router.Route("/mcp", func(r chi.Router) {
		r.Use(auth.Middleware(auth.NewVerifier(deps.Auth), handlers.authFailed))

		r.Get("/ping", handlers.Ping)
		r.Get("/runs", handlers.ListRuns)
		r.Route("/runs/{runid}", func(r chi.Router) {
			r.Use(handlers.requireRunAccess)
			r.Get("/", handlers.GetRun)
			r.Get("/catalog", handlers.Catalog)
			r.Post("/queries/validate", handlers.Validate)
			r.Post("/queries/execute", handlers.Execute)
			r.Post("/activate", handlers.Activate)
			r.Get("/presets", handlers.Presets)
			r.Get("/prompt-template", handlers.PromptTemplate)
		})
	})

	return nil
}
