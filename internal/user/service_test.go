package user

import (
	"context"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/auth"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/store"
)

type stubQueries struct {
	users map[int64]store.User
}

func (s *stubQueries) ListUsers(_ context.Context) ([]store.User, error) {
	var out []store.User
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *stubQueries) GetUser(_ context.Context, id int64) (store.User, error) {
	u, ok := s.users[id]
	if !ok {
		return store.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (s *stubQueries) CreateUser(_ context.Context, arg store.CreateUserParams) (store.User, error) {
	id := int64(len(s.users) + 1)
	u := store.User{
		ID:           id,
		Name:         arg.Name,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		IsActive:     true,
	}
	s.users[id] = u
	return u, nil
}

func (s *stubQueries) UpdateUser(_ context.Context, arg store.UpdateUserParams) (store.User, error) {
	u, ok := s.users[arg.ID]
	if !ok {
		return store.User{}, pgx.ErrNoRows
	}
	u.Name = arg.Name
	u.Email = arg.Email
	u.Role = arg.Role
	u.IsActive = arg.IsActive
	s.users[arg.ID] = u
	return u, nil
}

func (s *stubQueries) UpdateUserPassword(_ context.Context, id int64, hash string) (int64, error) {
	u, ok := s.users[id]
	if !ok {
		return 0, nil
	}
	u.PasswordHash = hash
	s.users[id] = u
	return 1, nil
}

func (s *stubQueries) SoftDeleteUser(_ context.Context, id int64) (int64, error) {
	if _, ok := s.users[id]; !ok {
		return 0, nil
	}
	delete(s.users, id)
	return 1, nil
}

func seed() *stubQueries {
	return &stubQueries{users: map[int64]store.User{
		1: {ID: 1, Name: "Admin", Email: "admin@example.com", Role: auth.RoleAdmin, IsActive: true},
		2: {ID: 2, Name: "Kasir", Email: "kasir@example.com", Role: auth.RoleCashier, IsActive: true},
	}}
}

func TestCreateWithRole(t *testing.T) {
	q := seed()
	svc, err := NewService(q)
	require.NoError(t, err)

	u, err := svc.Create(context.Background(), CreateInput{
		Name: "Rina", Email: "Rina@Example.com", Password: "password123", Role: auth.RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleManager, u.Role)
	assert.Equal(t, "rina@example.com", u.Email)

	_, err = svc.Create(context.Background(), CreateInput{
		Name: "X", Email: "x@example.com", Password: "password123", Role: "owner",
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestUpdateRole(t *testing.T) {
	svc, err := NewService(seed())
	require.NoError(t, err)

	u, err := svc.Update(context.Background(), 1, 2, UpdateInput{
		Name: "Kasir", Email: "kasir@example.com", Role: auth.RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleManager, u.Role)
}

func TestUpdateRejectsSelfDemotion(t *testing.T) {
	svc, err := NewService(seed())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), 1, 1, UpdateInput{
		Name: "Admin", Email: "admin@example.com", Role: auth.RoleCashier,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SELF_DEMOTION", appErr.Code)

	inactive := false
	_, err = svc.Update(context.Background(), 1, 1, UpdateInput{
		Name: "Admin", Email: "admin@example.com", Role: auth.RoleAdmin, IsActive: &inactive,
	})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SELF_DEMOTION", appErr.Code)
}

func TestDeleteRejectsSelf(t *testing.T) {
	svc, err := NewService(seed())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), 1, 1)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SELF_DEMOTION", appErr.Code)

	require.NoError(t, svc.Delete(context.Background(), 1, 2))
}

func TestResetPassword(t *testing.T) {
	q := seed()
	svc, err := NewService(q)
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), 2, "short")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)

	require.NoError(t, svc.ResetPassword(context.Background(), 2, "new-password-1"))
	ok, err := argon2id.ComparePasswordAndHash("new-password-1", q.users[2].PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}
