package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/weppcloud/queryengine/internal/server/features/common"
	"github.com/weppcloud/queryengine/pkg/core"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

// accessLog logs one line per request. Health checks are not logged.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"trace_id", ww.Header().Get("X-Trace-Id"),
			)
		})
	}
}

func isHealth(path string) bool {
	return strings.TrimRight(path, "/") == "/health"
}

// corsPolicy allows any origin and echoes requested headers, so browser
// clients can send Authorization to /mcp.
func corsPolicy() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Trace-Id"},
		MaxAge:         300,
	})
}

// recoverer turns panics into the 500 error envelope. Panics on per-run
// routes are appended to that run's exceptions log.
func recoverer(logger *slog.Logger, resolver *runctx.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := core.NewError(core.KindInternal, fmt.Errorf("panic: %v", rec), "internal server error")
				base := ""
				if runID := chi.URLParam(r, "runid"); runID != "" && resolver != nil {
					base, _ = resolver.Locate(runID, r.URL.Query().Get("scenario"))
				}
				common.WriteError(w, r, logger, base, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
