package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-erp/atelier-erp/internal/observability"
)

// RouteMounter is implemented by every module handler.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterConfig aggregates everything the HTTP router mounts.
type RouterConfig struct {
	Middleware     MiddlewareConfig
	Metrics        *observability.Metrics
	Projects       RouteMounter
	Quotes         RouteMounter
	PurchaseOrders RouteMounter
	Params         RouteMounter
	Jobs           RouteMounter
}

// NewRouter assembles the chi router with the full middleware stack and all
// module routes.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(cfg.Middleware) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	mount := func(pattern string, h RouteMounter) {
		if h == nil {
			return
		}
		r.Route(pattern, h.MountRoutes)
	}
	mount("/projects", cfg.Projects)
	mount("/quotes", cfg.Quotes)
	mount("/purchase-orders", cfg.PurchaseOrders)
	mount("/params", cfg.Params)
	mount("/jobs", cfg.Jobs)

	return r
}
