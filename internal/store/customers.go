package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Customer is a registered buyer who can accrue loyalty points.
type Customer struct {
	ID            int64
	Name          string
	Email         pgtype.Text
	Phone         pgtype.Text
	Address       pgtype.Text
	LoyaltyPoints int64
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

const customerColumns = `id, name, email, phone, address, loyalty_points, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.LoyaltyPoints,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListCustomersParams filters and paginates the customer listing.
type ListCustomersParams struct {
	Search string
	Limit  int32
	Offset int32
}

const listCustomers = `
SELECT ` + customerColumns + `
FROM customers
WHERE deleted_at IS NULL
  AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%')
ORDER BY name ASC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomers, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const countCustomers = `
SELECT count(*)
FROM customers
WHERE deleted_at IS NULL
  AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%')
`

func (q *Queries) CountCustomers(ctx context.Context, search string) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countCustomers, search).Scan(&total)
	return total, err
}

const getCustomer = `
SELECT ` + customerColumns + `
FROM customers
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomer, id))
}

// CreateCustomerParams carries the fields required to register a customer.
type CreateCustomerParams struct {
	Name    string
	Email   pgtype.Text
	Phone   pgtype.Text
	Address pgtype.Text
}

const createCustomer = `
INSERT INTO customers (name, email, phone, address)
VALUES ($1, $2, $3, $4)
RETURNING ` + customerColumns + `
`

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, createCustomer, arg.Name, arg.Email, arg.Phone, arg.Address))
}

// UpdateCustomerParams carries the mutable profile fields of a customer.
type UpdateCustomerParams struct {
	ID      int64
	Name    string
	Email   pgtype.Text
	Phone   pgtype.Text
	Address pgtype.Text
}

const updateCustomer = `
UPDATE customers
SET name = $2, email = $3, phone = $4, address = $5, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + customerColumns + `
`

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, updateCustomer, arg.ID, arg.Name, arg.Email, arg.Phone, arg.Address))
}

const softDeleteCustomer = `
UPDATE customers
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) SoftDeleteCustomer(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, softDeleteCustomer, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const addLoyaltyPoints = `
UPDATE customers
SET loyalty_points = GREATEST(0, loyalty_points + $2), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING loyalty_points
`

// AddLoyaltyPoints adjusts a customer's balance by delta, which may be
// negative for refunds. The balance never drops below zero.
func (q *Queries) AddLoyaltyPoints(ctx context.Context, id int64, delta int64) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, addLoyaltyPoints, id, delta).Scan(&balance)
	return balance, err
}
