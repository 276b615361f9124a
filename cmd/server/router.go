package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	accounthandler "portal/internal/accounts/handler"
	apphandler "portal/internal/applications/handler"
	"portal/internal/platform/metrics"
	"portal/pkg/platform/httputil"
	"portal/pkg/platform/middleware/metadata"
	"portal/pkg/platform/middleware/request"
	"portal/pkg/platform/middleware/requesttime"
)

type routerDeps struct {
	accounts     *accounthandler.Handler
	applications *apphandler.Handler

	authMW  func(http.Handler) http.Handler
	adminMW func(http.Handler) http.Handler
	// ipLimit throttles authenticated traffic through the shared counter store.
	ipLimit func(http.Handler) http.Handler
	// publicLimit is the per-instance request budget for unauthenticated routes.
	publicLimit int

	metrics *metrics.Metrics
	ready   func(context.Context) error
}

func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(deps.metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := deps.ready(ctx); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if deps.publicLimit > 0 {
			r.Use(httprate.LimitByIP(deps.publicLimit, time.Minute))
		}
		deps.accounts.Register(r)
		deps.applications.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.authMW)
		r.Use(deps.ipLimit)
		deps.applications.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(deps.adminMW)
			deps.applications.RegisterAdmin(r)
		})
	})
	return r
}
