package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

// Handler wires HTTP endpoints for orders.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      mw,
		validator: validator.New(),
	}
}

// MountRoutes registers order routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.With(h.rbac.RequireRole(rbac.RoleMedicalStore)).Post("/", h.handleCreate)
	r.With(h.rbac.RequireRole(rbac.RoleMedicalStore, rbac.RoleAdmin)).
		Post("/{id}/payments", h.handlePayment)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RolePharma, rbac.RoleAdmin))
		r.Patch("/{id}/status", h.handleTransition)
		r.Patch("/{id}/delivery", h.handleDelivery)
		r.Patch("/{id}/items/{itemId}/payment", h.handleItemPayment)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid order data")
		return
	}

	order, err := h.service.Create(r.Context(), *principal, req)
	if err != nil {
		h.logger.Warn("order create", slog.Int64("actor", principal.UserID), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	orders, err := h.service.List(r.Context(), *principal, Status(r.URL.Query().Get("status")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}
	order, err := h.service.Get(r.Context(), *principal, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req TransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Transition(r.Context(), *principal, id, req.Status)
	if err != nil {
		h.logger.Warn("order transition",
			slog.Int64("order", id), slog.String("target", string(req.Status)), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.RecordPayment(r.Context(), *principal, id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req DeliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateDelivery(r.Context(), *principal, id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleItemPayment(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	orderID, err := parseID(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}
	itemID, err := parseID(r, "itemId")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req ItemPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.SetItemPaid(r.Context(), *principal, orderID, itemID, req.IsPaid)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// respondError maps module errors the shared mapper does not know about.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInsufficientStock):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrItemNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, param), 10, 64)
}
