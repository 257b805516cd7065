// Package gateway assembles the public entry point: middleware chain, auth
// endpoints, health/metrics, and the proxy pipeline as the catch-all.
package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"parapet/internal/authapi"
	"parapet/internal/proxy"
	"parapet/pkg/middleware"
)

// App wires the gateway's shared pieces. Everything here is read-only after
// construction; request handling takes no locks.
type App struct {
	log         *zap.SugaredLogger
	auth        *authapi.App
	pipe        *proxy.Pipeline
	corsOrigins []string
}

func New(log *zap.SugaredLogger, auth *authapi.App, pipe *proxy.Pipeline, corsOrigins []string) *App {
	return &App{log: log, auth: auth, pipe: pipe, corsOrigins: corsOrigins}
}

// Handler builds the HTTP handler with routes and middleware. Paths not
// claimed by /auth, /health or /metrics fall through to the proxy pipeline.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.CORS(a.corsOrigins))
	r.Use(middleware.Tracing())
	r.Use(middleware.Metrics())

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	a.auth.Routes(r)

	r.NotFound(a.pipe.ServeHTTP)
	return r
}
