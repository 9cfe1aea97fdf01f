// Package server assembles the HTTP surface: the edge gateway in front of
// every route, then the auth, admin and operational endpoints.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mehmetcc/cmsgate/internal/admin"
	"github.com/mehmetcc/cmsgate/internal/auth"
	"github.com/mehmetcc/cmsgate/internal/gateway"
	"github.com/mehmetcc/cmsgate/internal/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"moul.io/chizap"
)

type Deps struct {
	Gateway  *gateway.Gateway
	Auth     auth.AuthenticationHandler
	Admin    admin.AdminHandler
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger

	// CORSOrigins enables CORS for the listed origins. Empty disables it.
	CORSOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(chizap.New(d.Logger, &chizap.Opts{
		WithReferer:   true,
		WithUserAgent: true,
	}))
	r.Use(middleware.Recoverer)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "HX-Request", "HX-Current-URL"},
			ExposedHeaders:   []string{"HX-Redirect"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(d.Gateway.Handler)

	r.NotFound(httpx.NotFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, httpx.ErrorResponse[any]{
			Code:    httpx.ErrMethodNotAllowed,
			Message: "method not allowed",
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Mount("/auth", d.Auth.Routes())
	r.Mount("/admin", d.Admin.Routes())
	return r
}
