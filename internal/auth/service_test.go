package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/store"
)

type stubQuerier struct {
	users  map[int64]store.User
	nextID int64
}

func newStubQuerier() *stubQuerier {
	return &stubQuerier{users: make(map[int64]store.User), nextID: 1}
}

func (s *stubQuerier) GetUser(_ context.Context, id int64) (store.User, error) {
	u, ok := s.users[id]
	if !ok {
		return store.User{}, errors.New("no rows")
	}
	return u, nil
}

func (s *stubQuerier) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, errors.New("no rows")
}

func (s *stubQuerier) CreateUser(_ context.Context, arg store.CreateUserParams) (store.User, error) {
	for _, u := range s.users {
		if u.Email == arg.Email {
			return store.User{}, errors.New("duplicate")
		}
	}
	u := store.User{
		ID:           s.nextID,
		Name:         arg.Name,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		IsActive:     true,
	}
	s.users[u.ID] = u
	s.nextID++
	return u, nil
}

func (s *stubQuerier) addUser(t *testing.T, email, password, role string, active bool) store.User {
	t.Helper()
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	require.NoError(t, err)
	u := store.User{
		ID:           s.nextID,
		Name:         "Test Staff",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	s.users[u.ID] = u
	s.nextID++
	return u
}

func newTestService(t *testing.T, q Querier) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Queries:        q,
		Secret:         "test-secret-value",
		AccessTokenTTL: time.Hour,
		Issuer:         "backend-pos",
		Audience:       "pos-terminal",
	})
	require.NoError(t, err)
	return svc
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, newStubQuerier())

	_, err := svc.Register(context.Background(), "", "a@b.c", "password123", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)

	_, err = svc.Register(context.Background(), "Ana", "a@b.c", "short", "")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)

	_, err = svc.Register(context.Background(), "Ana", "a@b.c", "password123", "superuser")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestRegisterDefaultsToCashier(t *testing.T) {
	q := newStubQuerier()
	svc := newTestService(t, q)

	user, err := svc.Register(context.Background(), "Ana", "Ana@Example.COM", "password123", "")
	require.NoError(t, err)
	assert.Equal(t, RoleCashier, user.Role)
	assert.Equal(t, "ana@example.com", user.Email)
}

func TestLoginAndParseToken(t *testing.T) {
	q := newStubQuerier()
	u := q.addUser(t, "kasir@example.com", "password123", RoleCashier, true)
	svc := newTestService(t, q)

	result, err := svc.Login(context.Background(), "kasir@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, result.User.ID)
	assert.NotEmpty(t, result.AccessToken)

	claims, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, RoleCashier, claims.Role)
	assert.Equal(t, "kasir@example.com", claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	q := newStubQuerier()
	q.addUser(t, "kasir@example.com", "password123", RoleCashier, true)
	svc := newTestService(t, q)

	_, err := svc.Login(context.Background(), "kasir@example.com", "wrong-password")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestLoginDisabledAccount(t *testing.T) {
	q := newStubQuerier()
	q.addUser(t, "kasir@example.com", "password123", RoleCashier, false)
	svc := newTestService(t, q)

	_, err := svc.Login(context.Background(), "kasir@example.com", "password123")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ACCOUNT_DISABLED", appErr.Code)
}

func TestParseExpiredToken(t *testing.T) {
	q := newStubQuerier()
	q.addUser(t, "kasir@example.com", "password123", RoleCashier, true)
	svc := newTestService(t, q)

	issued := time.Now().Add(-48 * time.Hour)
	svc.WithNow(func() time.Time { return issued })
	result, err := svc.Login(context.Background(), "kasir@example.com", "password123")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(result.AccessToken)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestParseGarbageToken(t *testing.T) {
	svc := newTestService(t, newStubQuerier())
	_, err := svc.ParseAccessToken("not-a-token")
	assert.Error(t, err)
}
