package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

// Service wraps order business rules.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
	stats StatsInvalidator
	now   func() time.Time
}

// StatsInvalidator drops cached dashboard aggregates after order writes.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// WithStats registers a cache invalidator notified on order mutations.
func (s *Service) WithStats(stats StatsInvalidator) *Service {
	s.stats = stats
	return s
}

// NewService constructs a new Service.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// Create places a new order. Stock is validated and unit prices are
// snapshotted under product row locks, but nothing is decremented until the
// pharma company confirms the order.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreateOrderRequest) (*Order, error) {
	if !rbac.CanPlaceOrder(actor.Role) {
		return nil, fmt.Errorf("%w: only medical stores can place orders", httpx.ErrForbidden)
	}

	ids := make([]int64, 0, len(req.Items))
	wanted := make(map[int64]int64, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", httpx.ErrValidation)
		}
		if _, dup := wanted[item.ProductID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %d in order", httpx.ErrValidation, item.ProductID)
		}
		wanted[item.ProductID] = item.Quantity
		ids = append(ids, item.ProductID)
	}

	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}
		if len(products) != len(ids) {
			return fmt.Errorf("%w: one or more products do not exist", httpx.ErrNotFound)
		}

		now := s.now()
		total := decimal.Zero
		items := make([]Item, 0, len(products))
		for _, p := range products {
			qty := wanted[p.ID]
			if !p.IsActive {
				return fmt.Errorf("%w: product %s is no longer available", httpx.ErrValidation, p.Name)
			}
			if p.CompanyID != req.PharmaID {
				return fmt.Errorf("%w: product %s belongs to a different company", httpx.ErrValidation, p.Name)
			}
			if p.ExpiryDate.Before(now) {
				return fmt.Errorf("%w: product %s has expired", httpx.ErrValidation, p.Name)
			}
			if p.Quantity < qty {
				return fmt.Errorf("%w for %s, available: %d", ErrInsufficientStock, p.Name, p.Quantity)
			}
			items = append(items, Item{ProductID: p.ID, Quantity: qty, UnitPrice: p.SellingPrice})
			total = total.Add(p.SellingPrice.Mul(decimal.NewFromInt(qty)))
		}

		number, err := tx.NextOrderNumber(ctx, now)
		if err != nil {
			return err
		}

		orderID, err = tx.CreateOrder(ctx, Order{
			OrderNumber:   number,
			PharmaID:      req.PharmaID,
			StoreID:       actor.UserID,
			Status:        StatusPending,
			PaymentStatus: PaymentPending,
			TotalAmount:   total,
			DueAmount:     total,
			Notes:         req.Notes,
		})
		if err != nil {
			return err
		}

		for _, item := range items {
			item.OrderID = orderID
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "order.create", orderID)
	return s.repo.GetByID(ctx, orderID)
}

// Get returns an order visible to the actor.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (*Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(actor, order) {
		return nil, fmt.Errorf("%w: not authorized to view this order", httpx.ErrForbidden)
	}
	return order, nil
}

// List returns the actor's side of the order book.
func (s *Service) List(ctx context.Context, actor shared.Principal, status Status) ([]Order, error) {
	filter := ListFilter{Status: status}
	switch actor.Role {
	case rbac.RolePharma:
		filter.PharmaID = actor.UserID
	case rbac.RoleMedicalStore:
		filter.StoreID = actor.UserID
	case rbac.RoleAdmin:
		// Admins see everything.
	default:
		return nil, httpx.ErrForbidden
	}
	return s.repo.List(ctx, filter)
}

// Transition moves an order through its lifecycle. Confirmation is the
// single point where stock is decremented; cancellation restores stock only
// when a prior confirmation committed it.
func (s *Service) Transition(ctx context.Context, actor shared.Principal, id int64, next Status) (*Order, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, next)
	}
	if !rbac.CanTransitionOrder(actor.Role) {
		return nil, fmt.Errorf("%w: cannot update order status", httpx.ErrForbidden)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role != rbac.RoleAdmin && order.PharmaID != actor.UserID {
			return fmt.Errorf("%w: not authorized to update this order", httpx.ErrForbidden)
		}
		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
		}

		updates := map[string]interface{}{"status": next}

		switch next {
		case StatusConfirmed:
			if err := s.commitStock(ctx, tx, order); err != nil {
				return err
			}
			updates["stock_committed"] = true
		case StatusCancelled:
			if order.StockCommitted {
				for _, item := range order.Items {
					if err := tx.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
						return err
					}
				}
				updates["stock_committed"] = false
			}
		case StatusDelivered:
			updates["actual_delivery"] = s.now()
		}

		return tx.UpdateOrder(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "order.status."+string(next), id)
	return s.repo.GetByID(ctx, id)
}

// commitStock decrements every line all-or-nothing under product row locks.
func (s *Service) commitStock(ctx context.Context, tx TxRepository, order *Order) error {
	ids := make([]int64, 0, len(order.Items))
	wanted := make(map[int64]int64, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
		wanted[item.ProductID] = item.Quantity
	}

	products, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return err
	}
	if len(products) != len(ids) {
		return fmt.Errorf("%w: one or more products no longer exist", httpx.ErrNotFound)
	}
	for _, p := range products {
		if p.Quantity < wanted[p.ID] {
			return fmt.Errorf("%w for %s, available: %d", ErrInsufficientStock, p.Name, p.Quantity)
		}
	}
	for _, p := range products {
		if err := tx.AdjustStock(ctx, p.ID, -wanted[p.ID]); err != nil {
			return err
		}
	}
	return nil
}

// RecordPayment appends a settlement and re-derives the payment status.
func (s *Service) RecordPayment(ctx context.Context, actor shared.Principal, id int64, req PaymentRequest) (*Order, error) {
	if !rbac.CanRecordPayment(actor.Role) {
		return nil, fmt.Errorf("%w: cannot record payments", httpx.ErrForbidden)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", httpx.ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role != rbac.RoleAdmin && order.StoreID != actor.UserID {
			return fmt.Errorf("%w: not authorized to add payment to this order", httpx.ErrForbidden)
		}
		if order.Status == StatusCancelled {
			return fmt.Errorf("%w: cannot record payment on a cancelled order", httpx.ErrValidation)
		}

		if _, err := tx.InsertPayment(ctx, Payment{OrderID: id, Amount: req.Amount, Method: req.Method, Reference: req.Reference}); err != nil {
			return err
		}

		paid, err := tx.PaidTotal(ctx, id)
		if err != nil {
			return err
		}
		due := order.TotalAmount.Sub(paid)
		return tx.UpdateOrder(ctx, id, map[string]interface{}{
			"due_amount":     due,
			"payment_status": DerivePaymentStatus(order.TotalAmount, due),
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "order.payment", id)
	return s.repo.GetByID(ctx, id)
}

// SetItemPaid flips the paid flag on a single line. The flag is independent
// of the order-level payment status.
func (s *Service) SetItemPaid(ctx context.Context, actor shared.Principal, orderID, itemID int64, isPaid bool) (*Order, error) {
	if !rbac.CanTransitionOrder(actor.Role) {
		return nil, fmt.Errorf("%w: cannot update item payment", httpx.ErrForbidden)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if actor.Role != rbac.RoleAdmin && order.PharmaID != actor.UserID {
			return fmt.Errorf("%w: not authorized to update this order", httpx.ErrForbidden)
		}
		return tx.SetItemPaid(ctx, orderID, itemID, isPaid)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, orderID)
}

// UpdateDelivery sets delivery staff and tracking details on an order.
func (s *Service) UpdateDelivery(ctx context.Context, actor shared.Principal, id int64, req DeliveryRequest) (*Order, error) {
	if !rbac.CanTransitionOrder(actor.Role) {
		return nil, fmt.Errorf("%w: cannot update delivery details", httpx.ErrForbidden)
	}

	updates := make(map[string]interface{})
	if req.StaffName != nil {
		updates["staff_name"] = *req.StaffName
	}
	if req.StaffContact != nil {
		updates["staff_contact"] = *req.StaffContact
	}
	if req.TrackingNumber != nil {
		updates["tracking_number"] = *req.TrackingNumber
	}
	if req.EstimatedDelivery != nil {
		updates["estimated_delivery"] = *req.EstimatedDelivery
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role != rbac.RoleAdmin && order.PharmaID != actor.UserID {
			return fmt.Errorf("%w: not authorized to update this order", httpx.ErrForbidden)
		}
		return tx.UpdateOrder(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) visible(actor shared.Principal, order *Order) bool {
	switch actor.Role {
	case rbac.RoleAdmin:
		return true
	case rbac.RolePharma:
		return order.PharmaID == actor.UserID
	case rbac.RoleMedicalStore:
		return order.StoreID == actor.UserID
	}
	return false
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Principal, action string, orderID int64) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   action,
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", orderID),
		})
	}
	if s.stats != nil {
		_ = s.stats.Invalidate(ctx)
	}
}
