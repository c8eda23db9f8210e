package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pos/internal/auth"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/store"
)

type queryProvider interface {
	ListUsers(ctx context.Context) ([]store.User, error)
	GetUser(ctx context.Context, id int64) (store.User, error)
	CreateUser(ctx context.Context, arg store.CreateUserParams) (store.User, error)
	UpdateUser(ctx context.Context, arg store.UpdateUserParams) (store.User, error)
	UpdateUserPassword(ctx context.Context, id int64, hash string) (int64, error)
	SoftDeleteUser(ctx context.Context, id int64) (int64, error)
}

// Service manages staff accounts: the admin surface for listing, creation
// with an explicit role, role changes, deactivation, and password resets.
// Self-service signup lives in the auth service and always yields a cashier.
type Service struct {
	queries queryProvider
}

// NewService constructs a Service.
func NewService(queries queryProvider) (*Service, error) {
	if queries == nil {
		return nil, errors.New("user: queries provider is required")
	}
	return &Service{queries: queries}, nil
}

// User is the admin-facing staff payload.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateInput is the write payload for staff accounts.
type UpdateInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

// CreateInput is the admin payload for creating a staff account with a role.
type CreateInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create adds a staff account. Unlike open registration the role is taken
// from the payload.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	if strings.TrimSpace(in.Name) == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "email is required", http.StatusBadRequest, nil)
	}
	if len(in.Password) < 8 {
		return User{}, common.NewAppError("VALIDATION_ERROR", "password must be at least 8 characters", http.StatusBadRequest, nil)
	}
	role := in.Role
	if role == "" {
		role = auth.RoleCashier
	}
	if !auth.ValidRole(role) {
		return User{}, common.NewAppError("VALIDATION_ERROR", "role must be admin, manager, or cashier", http.StatusBadRequest, nil)
	}

	hash, err := argon2id.CreateHash(in.Password, argon2id.DefaultParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	row, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if store.UniqueViolation(err) {
			return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, err)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return convert(row), nil
}

// List returns all live staff accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	rows, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	items := make([]User, 0, len(rows))
	for _, row := range rows {
		items = append(items, convert(row))
	}
	return items, nil
}

// Get returns one staff account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	row, err := s.queries.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound()
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return convert(row), nil
}

// Update changes profile, role, or active state. actorID guards against an
// admin deactivating or demoting their own account.
func (s *Service) Update(ctx context.Context, actorID, id int64, in UpdateInput) (User, error) {
	if strings.TrimSpace(in.Name) == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "email is required", http.StatusBadRequest, nil)
	}
	if !auth.ValidRole(in.Role) {
		return User{}, common.NewAppError("VALIDATION_ERROR", "role must be admin, manager, or cashier", http.StatusBadRequest, nil)
	}
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	if actorID == id && (!isActive || in.Role != auth.RoleAdmin) {
		return User{}, common.NewAppError("SELF_DEMOTION", "cannot demote or deactivate your own account", http.StatusConflict, nil)
	}

	row, err := s.queries.UpdateUser(ctx, store.UpdateUserParams{
		ID:       id,
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Role:     in.Role,
		IsActive: isActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound()
		}
		if store.UniqueViolation(err) {
			return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, err)
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return convert(row), nil
}

// ResetPassword sets a new password for a staff account.
func (s *Service) ResetPassword(ctx context.Context, id int64, password string) error {
	if len(password) < 8 {
		return common.NewAppError("VALIDATION_ERROR", "password must be at least 8 characters", http.StatusBadRequest, nil)
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	affected, err := s.queries.UpdateUserPassword(ctx, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected == 0 {
		return notFound()
	}
	return nil
}

// Delete soft-deletes a staff account. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return common.NewAppError("SELF_DEMOTION", "cannot delete your own account", http.StatusConflict, nil)
	}
	affected, err := s.queries.SoftDeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return notFound()
	}
	return nil
}

func notFound() error {
	return common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, nil)
}

func convert(u store.User) User {
	return User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Time,
		UpdatedAt: u.UpdatedAt.Time,
	}
}
