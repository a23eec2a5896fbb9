package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/auth"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/catalog"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/orders"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

// OrderSource resolves an order subject to the actor's visibility rules.
type OrderSource interface {
	Get(ctx context.Context, actor shared.Principal, id int64) (*orders.Order, error)
}

// UserSource resolves account profiles for the invoice parties.
type UserSource interface {
	FindByID(ctx context.Context, id int64) (*auth.User, error)
}

// ProductSource resolves product display names for invoice lines.
type ProductSource interface {
	GetByID(ctx context.Context, id int64) (*catalog.Product, error)
}

// Handler serves invoice PDFs for orders.
type Handler struct {
	logger   *slog.Logger
	orders   OrderSource
	users    UserSource
	products ProductSource
	exporter *PDFExporter
	rbac     rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, os OrderSource, us UserSource, ps ProductSource, exporter *PDFExporter, mw rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		orders:   os,
		users:    us,
		products: ps,
		exporter: exporter,
		rbac:     mw,
	}
}

// MountRoutes registers invoice routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate)
	r.Get("/orders/{orderId}", h.handleGenerate)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.orders.Get(r.Context(), *principal, orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	pharma, err := h.users.FindByID(r.Context(), order.PharmaID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, err := h.users.FindByID(r.Context(), order.StoreID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	names := make(map[int64]string, len(order.Items))
	for _, item := range order.Items {
		product, err := h.products.GetByID(r.Context(), item.ProductID)
		if err != nil {
			// A deactivated product still needs a name on old invoices.
			continue
		}
		names[item.ProductID] = product.Name
	}

	pdf, err := h.exporter.Render(r.Context(), BuildPayload(order, pharma, store, names))
	if err != nil {
		h.logger.Error("invoice render", slog.Int64("order", orderID), slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "error generating invoice")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", order.OrderNumber))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
