package customer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/store"
)

type queryProvider interface {
	ListCustomers(ctx context.Context, arg store.ListCustomersParams) ([]store.Customer, error)
	CountCustomers(ctx context.Context, search string) (int64, error)
	GetCustomer(ctx context.Context, id int64) (store.Customer, error)
	CreateCustomer(ctx context.Context, arg store.CreateCustomerParams) (store.Customer, error)
	UpdateCustomer(ctx context.Context, arg store.UpdateCustomerParams) (store.Customer, error)
	SoftDeleteCustomer(ctx context.Context, id int64) (int64, error)
}

// Service manages customer profiles and loyalty balances.
type Service struct {
	queries      queryProvider
	defaultLimit int
	maxLimit     int
}

// NewService constructs a Service.
func NewService(queries queryProvider, defaultLimit, maxLimit int) (*Service, error) {
	if queries == nil {
		return nil, errors.New("customer: queries provider is required")
	}
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	if maxLimit < 1 {
		maxLimit = 100
	}
	return &Service{queries: queries, defaultLimit: defaultLimit, maxLimit: maxLimit}, nil
}

// Customer is the public customer payload.
type Customer struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	Address       *string   `json:"address,omitempty"`
	LoyaltyPoints int64     `json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Input is the write payload for customers.
type Input struct {
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// ListResult contains a page of customers.
type ListResult struct {
	Items []Customer
	Total int64
	Page  int
	Limit int
}

// List returns a page of customers matching the search term.
func (s *Service) List(ctx context.Context, search string, page, limit int) (ListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	rows, err := s.queries.ListCustomers(ctx, store.ListCustomersParams{
		Search: strings.TrimSpace(search),
		Limit:  int32(limit),
		Offset: int32((page - 1) * limit),
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("list customers: %w", err)
	}
	total, err := s.queries.CountCustomers(ctx, strings.TrimSpace(search))
	if err != nil {
		return ListResult{}, fmt.Errorf("count customers: %w", err)
	}
	items := make([]Customer, 0, len(rows))
	for _, row := range rows {
		items = append(items, convert(row))
	}
	return ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	row, err := s.queries.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, notFound()
		}
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return convert(row), nil
}

// Create registers a customer.
func (s *Service) Create(ctx context.Context, in Input) (Customer, error) {
	if err := validate(in); err != nil {
		return Customer{}, err
	}
	row, err := s.queries.CreateCustomer(ctx, store.CreateCustomerParams{
		Name:    strings.TrimSpace(in.Name),
		Email:   store.TextPtr(normalizeEmail(in.Email)),
		Phone:   store.TextPtr(in.Phone),
		Address: store.TextPtr(in.Address),
	})
	if err != nil {
		if store.UniqueViolation(err) {
			return Customer{}, common.NewAppError("PHONE_ALREADY_USED", "phone number is already registered", http.StatusConflict, err)
		}
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return convert(row), nil
}

// Update replaces a customer's profile fields. Loyalty balances only change
// through sales and refunds.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Customer, error) {
	if err := validate(in); err != nil {
		return Customer{}, err
	}
	row, err := s.queries.UpdateCustomer(ctx, store.UpdateCustomerParams{
		ID:      id,
		Name:    strings.TrimSpace(in.Name),
		Email:   store.TextPtr(normalizeEmail(in.Email)),
		Phone:   store.TextPtr(in.Phone),
		Address: store.TextPtr(in.Address),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, notFound()
		}
		if store.UniqueViolation(err) {
			return Customer{}, common.NewAppError("PHONE_ALREADY_USED", "phone number is already registered", http.StatusConflict, err)
		}
		return Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return convert(row), nil
}

// Delete soft-deletes a customer.
func (s *Service) Delete(ctx context.Context, id int64) error {
	affected, err := s.queries.SoftDeleteCustomer(ctx, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if affected == 0 {
		return notFound()
	}
	return nil
}

func validate(in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	return nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.TrimSpace(strings.ToLower(*email))
	if v == "" {
		return nil
	}
	return &v
}

func notFound() error {
	return common.NewAppError("NOT_FOUND", "customer not found", http.StatusNotFound, nil)
}

func convert(c store.Customer) Customer {
	out := Customer{
		ID:            c.ID,
		Name:          c.Name,
		LoyaltyPoints: c.LoyaltyPoints,
		CreatedAt:     c.CreatedAt.Time,
		UpdatedAt:     c.UpdatedAt.Time,
	}
	if c.Email.Valid {
		v := c.Email.String
		out.Email = &v
	}
	if c.Phone.Valid {
		v := c.Phone.String
		out.Phone = &v
	}
	if c.Address.Valid {
		v := c.Address.String
		out.Address = &v
	}
	return out
}
