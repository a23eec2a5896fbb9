package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/auth"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/catalog"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/invoice"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/observability"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/orders"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/stats"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/users"
	"github.com/vrajkachhadiya/pharmasync-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthHandler    *auth.Handler
	CatalogHandler *catalog.Handler
	OrdersHandler  *orders.Handler
	InvoiceHandler *invoice.Handler
	StatsHandler   *stats.Handler
	UsersHandler   *users.Handler
	JobHandler     *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with PharmaSync defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/products", params.CatalogHandler.MountRoutes)
		r.Route("/orders", params.OrdersHandler.MountRoutes)
		r.Route("/invoice", params.InvoiceHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/pharma", params.StatsHandler.MountPharmaRoutes)
		r.Route("/medical-store", params.StatsHandler.MountStoreRoutes)
		r.Route("/admin", params.StatsHandler.MountAdminRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
