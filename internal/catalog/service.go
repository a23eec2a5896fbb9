package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

const (
	defaultLowStockThreshold   = 10
	defaultOutOfStockThreshold = 0
)

// StatsInvalidator drops cached dashboard aggregates after catalog writes.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service wraps catalog business rules.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
	stats StatsInvalidator
}

// NewService constructs a new Service.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// WithStats registers a cache invalidator notified on catalog mutations.
func (s *Service) WithStats(stats StatsInvalidator) *Service {
	s.stats = stats
	return s
}

// Create lists a new product owned by the acting pharma company.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreateProductRequest) (*Product, error) {
	if !rbac.CanMutateProduct(actor.Role) {
		return nil, fmt.Errorf("%w: only pharma companies can list products", httpx.ErrForbidden)
	}
	if !req.ExpiryDate.After(time.Now()) {
		return nil, fmt.Errorf("%w: expiry date must be in the future", httpx.ErrValidation)
	}
	if req.SellingPrice.IsNegative() {
		return nil, fmt.Errorf("%w: selling price cannot be negative", httpx.ErrValidation)
	}

	p := &Product{
		Name:                req.Name,
		BatchNumber:         req.BatchNumber,
		ExpiryDate:          req.ExpiryDate,
		Manufacturer:        req.Manufacturer,
		Category:            req.Category,
		Description:         req.Description,
		SellingPrice:        req.SellingPrice,
		Quantity:            req.Quantity,
		LowStockThreshold:   defaultLowStockThreshold,
		OutOfStockThreshold: defaultOutOfStockThreshold,
		CompanyID:           actor.UserID,
	}
	if req.LowStockThreshold != nil {
		p.LowStockThreshold = *req.LowStockThreshold
	}
	if req.OutOfStockThreshold != nil {
		p.OutOfStockThreshold = *req.OutOfStockThreshold
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			return nil, fmt.Errorf("%w: batch number already exists", httpx.ErrDuplicate)
		}
		return nil, err
	}

	s.recordAudit(ctx, actor, "product.create", p.ID)
	return p, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns products visible to the actor. Pharma companies may scope
// the listing to their own catalog with ownOnly.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter, ownOnly bool) ([]Product, error) {
	if ownOnly {
		if actor.Role != rbac.RolePharma {
			return nil, fmt.Errorf("%w: only pharma companies own a catalog", httpx.ErrForbidden)
		}
		filter.CompanyID = actor.UserID
	}
	return s.repo.List(ctx, filter)
}

// Update applies a partial update after an ownership check.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, req UpdateProductRequest) (*Product, error) {
	if !rbac.CanMutateProduct(actor.Role) {
		return nil, fmt.Errorf("%w: cannot modify products", httpx.ErrForbidden)
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != rbac.RoleAdmin && existing.CompanyID != actor.UserID {
		return nil, fmt.Errorf("%w: product belongs to another company", httpx.ErrForbidden)
	}
	if req.Empty() {
		return existing, nil
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.ExpiryDate != nil {
		updates["expiry_date"] = *req.ExpiryDate
	}
	if req.Manufacturer != nil {
		updates["manufacturer"] = *req.Manufacturer
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.SellingPrice != nil {
		if req.SellingPrice.IsNegative() {
			return nil, fmt.Errorf("%w: selling price cannot be negative", httpx.ErrValidation)
		}
		updates["selling_price"] = *req.SellingPrice
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return nil, fmt.Errorf("%w: quantity cannot be negative", httpx.ErrValidation)
		}
		updates["quantity"] = *req.Quantity
	}
	if req.LowStockThreshold != nil {
		updates["low_stock_threshold"] = *req.LowStockThreshold
	}
	if req.OutOfStockThreshold != nil {
		updates["out_of_stock_threshold"] = *req.OutOfStockThreshold
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "product.update", id)
	return s.repo.GetByID(ctx, id)
}

// Delete soft-deletes a product after an ownership check.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	if !rbac.CanMutateProduct(actor.Role) {
		return fmt.Errorf("%w: cannot delete products", httpx.ErrForbidden)
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != rbac.RoleAdmin && existing.CompanyID != actor.UserID {
		return fmt.Errorf("%w: product belongs to another company", httpx.ErrForbidden)
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}

	s.recordAudit(ctx, actor, "product.delete", id)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Principal, action string, productID int64) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   action,
			Entity:   "product",
			EntityID: fmt.Sprintf("%d", productID),
		})
	}
	if s.stats != nil {
		_ = s.stats.Invalidate(ctx)
	}
}
