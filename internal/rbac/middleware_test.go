package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

func newMiddleware(t *testing.T) (rbac.Middleware, *shared.TokenManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := shared.NewTokenManager(client, "secret", time.Hour)
	return rbac.Middleware{Tokens: tokens}, tokens
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateMissingToken(t *testing.T) {
	mw, _ := newMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	res := httptest.NewRecorder()
	mw.Authenticate(okHandler()).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAuthenticateValidToken(t *testing.T) {
	mw, tokens := newMiddleware(t)

	token, err := tokens.Issue(context.Background(), shared.Principal{UserID: 1, Role: rbac.RolePharma})
	require.NoError(t, err)

	var seen *shared.Principal
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	mw.Authenticate(inner).ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, seen)
	require.Equal(t, int64(1), seen.UserID)
	require.Equal(t, rbac.RolePharma, seen.Role)
}

func TestRequireRoleForbidden(t *testing.T) {
	mw, _ := newMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), &shared.Principal{UserID: 2, Role: rbac.RoleMedicalStore}))
	res := httptest.NewRecorder()
	mw.RequireRole(rbac.RoleAdmin)(okHandler()).ServeHTTP(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireRoleAllowsAny(t *testing.T) {
	mw, _ := newMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), &shared.Principal{UserID: 3, Role: rbac.RolePharma}))
	res := httptest.NewRecorder()
	mw.RequireRole(rbac.RolePharma, rbac.RoleAdmin)(okHandler()).ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
}

func TestCapabilities(t *testing.T) {
	require.True(t, rbac.CanMutateProduct(rbac.RolePharma))
	require.False(t, rbac.CanMutateProduct(rbac.RoleMedicalStore))
	require.True(t, rbac.CanPlaceOrder(rbac.RoleMedicalStore))
	require.False(t, rbac.CanPlaceOrder(rbac.RolePharma))
	require.True(t, rbac.CanTransitionOrder(rbac.RolePharma))
	require.False(t, rbac.CanTransitionOrder(rbac.RoleMedicalStore))
	require.True(t, rbac.CanRecordPayment(rbac.RoleMedicalStore))
	require.False(t, rbac.CanRecordPayment(rbac.RolePharma))
	require.True(t, rbac.CanManageUsers(rbac.RoleAdmin))
	require.False(t, rbac.CanManageUsers(rbac.RolePharma))
}
