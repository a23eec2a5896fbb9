package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

// ErrInvalidCredentials is returned for unknown email, wrong password or a
// blocked account. The cases are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *shared.TokenManager
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *shared.TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// RegisterInput carries the fields accepted at signup.
type RegisterInput struct {
	Email         string
	Password      string
	Role          string
	CompanyName   string
	ContactNumber string
	Address       Address
}

// Register creates a new account and logs it in immediately.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, string, error) {
	if input.Role == rbac.RoleAdmin {
		return nil, "", fmt.Errorf("%w: admin accounts cannot self-register", httpx.ErrForbidden)
	}
	if !rbac.ValidRole(input.Role) {
		return nil, "", fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, input.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &User{
		Email:         input.Email,
		PasswordHash:  string(hash),
		Role:          input.Role,
		CompanyName:   input.CompanyName,
		ContactNumber: input.ContactNumber,
		Address:       input.Address,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			return nil, "", fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
		}
		return nil, "", err
	}

	token, err := s.tokens.Issue(ctx, shared.Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate validates email/password credentials and issues a token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !user.IsActive {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, shared.Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout revokes the presented token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// CurrentUser loads the full profile for the authenticated principal.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

// TokenTTL exposes how long issued tokens live.
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
