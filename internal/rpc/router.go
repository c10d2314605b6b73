// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MohaMehrzad/aios-core/internal/middleware"
)

// Router assembles the aiOS control-plane HTTP surface (spec.md §6) on
// top of chi, following the teacher's SetupChi layering: a global
// middleware stack, then per-area route groups each with their own rate
// limit.
type Router struct {
	handler *Handler
}

// NewRouter builds a Router bound to handler.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// chiHandlerFunc adapts our http.HandlerFunc-based middleware to chi's
// func(http.Handler) http.Handler, matching the teacher's chiMiddleware
// adapter.
func chiHandlerFunc(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

func chiParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// Setup builds the full route tree and returns the resulting handler.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(chiHandlerFunc(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-AIOS-Subject", "X-Request-ID"},
		MaxAge:           300,
		AllowCredentials: false,
	}))
	r.Use(chiHandlerFunc(middleware.PrometheusMetrics))
	r.Use(chiHandlerFunc(middleware.Compression))
	r.Use(httprate.LimitByIP(600, time.Minute))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1/tools", func(r chi.Router) {
		r.Get("/", h.ListTools)
		r.Post("/", h.RegisterTool)
		r.Get("/{name}", h.GetTool)
		r.Delete("/{name}", h.DeregisterTool)
		r.With(httprate.LimitByIP(60, time.Minute)).Post("/{name}/execute", h.Execute)
	})

	r.Route("/api/v1/discovery/services", func(r chi.Router) {
		r.Get("/", h.ListServicesByKind)
		r.Post("/", h.RegisterService)
		r.Get("/{name}", h.LookupService)
		r.Delete("/{name}", h.DeregisterService)
		r.Post("/{name}/heartbeat", h.HeartbeatService)
	})

	r.Route("/api/v1/cluster/nodes", func(r chi.Router) {
		r.Get("/", h.ListNodes)
		r.Post("/", h.RegisterNode)
		r.Post("/{id}/heartbeat", h.HeartbeatNode)
	})
	r.Get("/api/v1/cluster/route", h.RouteToNode)
	if h.HeartbeatHub != nil {
		r.Get("/cluster/heartbeat", h.HeartbeatHub.ServeHTTP)
	}

	r.Route("/api/v1/capabilities", func(r chi.Router) {
		r.Post("/grant", h.GrantCapability)
		r.Post("/revoke", h.RevokeCapability)
		r.Get("/{agent_id}", h.ListGrants)
	})

	r.Get("/api/v1/audit", h.QueryAudit)

	r.Route("/api/v1/plugins", func(r chi.Router) {
		r.Get("/", h.ListPlugins)
		r.Post("/", h.CreatePlugin)
		r.Post("/templates/{template}", h.CreatePluginFromTemplate)
		r.Delete("/{name}", h.DeletePlugin)
	})

	r.Post("/api/v1/trust/{service}/rotate", h.RotateTrust)

	r.Route("/api/v1/goals", func(r chi.Router) {
		r.Post("/", h.SubmitGoal)
		r.Get("/", h.ListGoals)
		r.Get("/{id}", h.GetGoal)
	})

	r.Post("/api/v1/remote/{address}/goals", h.SubmitRemoteGoal)

	return r
}
