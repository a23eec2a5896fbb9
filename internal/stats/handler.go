package stats

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

// Handler serves role scoped dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: mw}
}

// MountPharmaRoutes registers the pharma dashboard.
func (h *Handler) MountPharmaRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate, h.rbac.RequireRole(rbac.RolePharma))
	r.Get("/stats", h.handlePharma)
}

// MountStoreRoutes registers the medical store dashboard.
func (h *Handler) MountStoreRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate, h.rbac.RequireRole(rbac.RoleMedicalStore))
	r.Get("/stats", h.handleStore)
}

// MountAdminRoutes registers the admin dashboard.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate, h.rbac.RequireRole(rbac.RoleAdmin))
	r.Get("/stats", h.handleAdmin)
}

func (h *Handler) handlePharma(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	out, err := h.service.Pharma(r.Context(), principal.UserID)
	if err != nil {
		h.logger.Error("pharma stats", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "error fetching statistics")
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleStore(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	out, err := h.service.Store(r.Context(), principal.UserID)
	if err != nil {
		h.logger.Error("store stats", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "error fetching statistics")
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleAdmin(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Admin(r.Context())
	if err != nil {
		h.logger.Error("admin stats", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "error fetching statistics")
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
