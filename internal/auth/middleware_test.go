package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthMissingToken(t *testing.T) {
	svc := newTestService(t, newStubQuerier())
	mw := Middleware{Service: svc}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	mw.RequireAuth(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "UNAUTHORIZED")
}

func TestRequireAuthValidToken(t *testing.T) {
	q := newStubQuerier()
	u := q.addUser(t, "kasir@example.com", "password123", RoleCashier, true)
	svc := newTestService(t, q)
	mw := Middleware{Service: svc}

	result, err := svc.Login(context.Background(), "kasir@example.com", "password123")
	require.NoError(t, err)

	var seen common.Identity
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+result.AccessToken)
	mw.RequireAuth(inner).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, u.ID, seen.UserID)
	assert.Equal(t, RoleCashier, seen.Role)
}

func TestRequireRole(t *testing.T) {
	guard := RequireRole(RoleAdmin, RoleManager)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	ctx := common.WithIdentity(req.Context(), common.Identity{UserID: 1, Role: RoleCashier})
	guard(okHandler()).ServeHTTP(rr, req.WithContext(ctx))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	ctx = common.WithIdentity(req.Context(), common.Identity{UserID: 2, Role: RoleManager})
	guard(okHandler()).ServeHTTP(rr, req.WithContext(ctx))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	RequireRole(RoleAdmin)(okHandler()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
