package customer

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/store"
)

type stubQueries struct {
	customers map[int64]store.Customer
	nextID    int64
}

func newStubQueries() *stubQueries {
	return &stubQueries{customers: make(map[int64]store.Customer), nextID: 1}
}

func (s *stubQueries) ListCustomers(_ context.Context, arg store.ListCustomersParams) ([]store.Customer, error) {
	var out []store.Customer
	for _, c := range s.customers {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubQueries) CountCustomers(_ context.Context, _ string) (int64, error) {
	return int64(len(s.customers)), nil
}

func (s *stubQueries) GetCustomer(_ context.Context, id int64) (store.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return store.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *stubQueries) CreateCustomer(_ context.Context, arg store.CreateCustomerParams) (store.Customer, error) {
	c := store.Customer{ID: s.nextID, Name: arg.Name, Email: arg.Email, Phone: arg.Phone, Address: arg.Address}
	s.customers[c.ID] = c
	s.nextID++
	return c, nil
}

func (s *stubQueries) UpdateCustomer(_ context.Context, arg store.UpdateCustomerParams) (store.Customer, error) {
	c, ok := s.customers[arg.ID]
	if !ok {
		return store.Customer{}, pgx.ErrNoRows
	}
	c.Name = arg.Name
	c.Email = arg.Email
	c.Phone = arg.Phone
	c.Address = arg.Address
	s.customers[arg.ID] = c
	return c, nil
}

func (s *stubQueries) SoftDeleteCustomer(_ context.Context, id int64) (int64, error) {
	if _, ok := s.customers[id]; !ok {
		return 0, nil
	}
	delete(s.customers, id)
	return 1, nil
}

func TestCreateNormalizesEmail(t *testing.T) {
	svc, err := NewService(newStubQueries(), 50, 100)
	require.NoError(t, err)

	email := "  Budi@Example.COM "
	c, err := svc.Create(context.Background(), Input{Name: "Budi", Email: &email})
	require.NoError(t, err)
	require.NotNil(t, c.Email)
	assert.Equal(t, "budi@example.com", *c.Email)
}

func TestCreateRequiresName(t *testing.T) {
	svc, err := NewService(newStubQueries(), 50, 100)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Input{Name: "   "})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestGetNotFound(t *testing.T) {
	svc, err := NewService(newStubQueries(), 50, 100)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 42)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestDelete(t *testing.T) {
	q := newStubQueries()
	svc, err := NewService(q, 50, 100)
	require.NoError(t, err)

	c, err := svc.Create(context.Background(), Input{Name: "Budi"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), c.ID))
	assert.Error(t, svc.Delete(context.Background(), c.ID))
}
