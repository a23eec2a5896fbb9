package users

import (
	"context"
	"fmt"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/auth"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

// UpdateUserRequest whitelists the fields an admin may change. Email, role
// and password are deliberately not updatable through this surface.
type UpdateUserRequest struct {
	CompanyName   *string `json:"companyName"`
	ContactNumber *string `json:"contactNumber"`
	Street        *string `json:"street"`
	City          *string `json:"city"`
	State         *string `json:"state"`
	Pincode       *string `json:"pincode"`
	IsActive      *bool   `json:"isActive"`
}

// Service wraps account administration rules.
type Service struct {
	repo   Repository
	tokens *shared.TokenManager
	audit  *shared.AuditLogger
	stats  StatsInvalidator
}

// StatsInvalidator drops cached dashboard aggregates after account writes.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// WithStats registers a cache invalidator notified on account mutations.
func (s *Service) WithStats(stats StatsInvalidator) *Service {
	s.stats = stats
	return s
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *shared.TokenManager, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, tokens: tokens, audit: audit}
}

// List returns every account. Admin only.
func (s *Service) List(ctx context.Context, actor shared.Principal) ([]auth.User, error) {
	if !rbac.CanManageUsers(actor.Role) {
		return nil, httpx.ErrForbidden
	}
	return s.repo.List(ctx)
}

// Get returns one account. Admin only.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (*auth.User, error) {
	if !rbac.CanManageUsers(actor.Role) {
		return nil, httpx.ErrForbidden
	}
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial profile update. Admin only. Setting IsActive to
// false blocks the account and revokes its live tokens.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, req UpdateUserRequest) (*auth.User, error) {
	if !rbac.CanManageUsers(actor.Role) {
		return nil, httpx.ErrForbidden
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.CompanyName != nil {
		updates["company_name"] = *req.CompanyName
	}
	if req.ContactNumber != nil {
		updates["contact_number"] = *req.ContactNumber
	}
	if req.Street != nil {
		updates["address_street"] = *req.Street
	}
	if req.City != nil {
		updates["address_city"] = *req.City
	}
	if req.State != nil {
		updates["address_state"] = *req.State
	}
	if req.Pincode != nil {
		updates["address_pincode"] = *req.Pincode
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, err
	}

	if req.IsActive != nil && !*req.IsActive {
		if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
			return nil, err
		}
	}

	s.recordAudit(ctx, actor, "user.update", id)
	return s.repo.GetByID(ctx, id)
}

// Delete removes the actor's own account and every product and order tied
// to it. Users may only delete themselves.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	if actor.UserID != id {
		return fmt.Errorf("%w: not authorized to delete this profile", httpx.ErrForbidden)
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCascade(ctx, user); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
		return err
	}

	s.recordAudit(ctx, actor, "user.delete", id)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Principal, action string, userID int64) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   action,
			Entity:   "user",
			EntityID: fmt.Sprintf("%d", userID),
		})
	}
	if s.stats != nil {
		_ = s.stats.Invalidate(ctx)
	}
}
