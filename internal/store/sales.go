package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Sale is a completed (or later refunded/cancelled) checkout. Monetary fields
// hold minor currency units; DiscountValue holds basis points for percentage
// discounts and minor units for fixed ones, TaxRateBPS holds basis points.
type Sale struct {
	ID                  int64
	InvoiceNumber       string
	UserID              int64
	CustomerID          pgtype.Int8
	Subtotal            int64
	DiscountType        string
	DiscountValue       int64
	DiscountAmount      int64
	TaxRateBPS          int64
	TaxAmount           int64
	GrandTotal          int64
	PaymentMethod       string
	AmountPaid          int64
	ChangeAmount        int64
	LoyaltyPointsEarned int64
	Status              string
	Notes               pgtype.Text
	CreatedAt           pgtype.Timestamptz
	UpdatedAt           pgtype.Timestamptz
}

// SaleItem snapshots a product line at sale time so later catalog edits do not
// rewrite history. Discount is the absolute per-line discount in minor units.
type SaleItem struct {
	ID          int64
	SaleID      int64
	ProductID   int64
	ProductName string
	ProductSKU  string
	Quantity    int32
	UnitPrice   int64
	Discount    int64
	LineTotal   int64
}

const saleColumns = `id, invoice_number, user_id, customer_id, subtotal, discount_type,
	discount_value, discount_amount, tax_rate, tax_amount, grand_total, payment_method,
	amount_paid, change_amount, loyalty_points_earned, status, notes, created_at, updated_at`

func scanSale(row interface{ Scan(...any) error }) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.InvoiceNumber, &s.UserID, &s.CustomerID, &s.Subtotal,
		&s.DiscountType, &s.DiscountValue, &s.DiscountAmount, &s.TaxRateBPS, &s.TaxAmount,
		&s.GrandTotal, &s.PaymentMethod, &s.AmountPaid, &s.ChangeAmount,
		&s.LoyaltyPointsEarned, &s.Status, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// SaleWithNames is a sale joined with its cashier and customer names for
// history reads.
type SaleWithNames struct {
	Sale
	CashierName  string
	CustomerName pgtype.Text
}

const saleWithNamesColumns = `s.id, s.invoice_number, s.user_id, s.customer_id, s.subtotal,
	s.discount_type, s.discount_value, s.discount_amount, s.tax_rate, s.tax_amount,
	s.grand_total, s.payment_method, s.amount_paid, s.change_amount,
	s.loyalty_points_earned, s.status, s.notes, s.created_at, s.updated_at,
	u.name, c.name`

func scanSaleWithNames(row interface{ Scan(...any) error }) (SaleWithNames, error) {
	var s SaleWithNames
	err := row.Scan(&s.ID, &s.InvoiceNumber, &s.UserID, &s.CustomerID, &s.Subtotal,
		&s.DiscountType, &s.DiscountValue, &s.DiscountAmount, &s.TaxRateBPS, &s.TaxAmount,
		&s.GrandTotal, &s.PaymentMethod, &s.AmountPaid, &s.ChangeAmount,
		&s.LoyaltyPointsEarned, &s.Status, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
		&s.CashierName, &s.CustomerName)
	return s, err
}

// CreateSaleParams carries the header row of a checkout.
type CreateSaleParams struct {
	InvoiceNumber       string
	UserID              int64
	CustomerID          pgtype.Int8
	Subtotal            int64
	DiscountType        string
	DiscountValue       int64
	DiscountAmount      int64
	TaxRateBPS          int64
	TaxAmount           int64
	GrandTotal          int64
	PaymentMethod       string
	AmountPaid          int64
	ChangeAmount        int64
	LoyaltyPointsEarned int64
	Notes               pgtype.Text
}

const createSale = `
INSERT INTO sales (invoice_number, user_id, customer_id, subtotal, discount_type,
	discount_value, discount_amount, tax_rate, tax_amount, grand_total, payment_method,
	amount_paid, change_amount, loyalty_points_earned, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 'completed', $15)
RETURNING ` + saleColumns + `
`

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, createSale,
		arg.InvoiceNumber, arg.UserID, arg.CustomerID, arg.Subtotal, arg.DiscountType,
		arg.DiscountValue, arg.DiscountAmount, arg.TaxRateBPS, arg.TaxAmount,
		arg.GrandTotal, arg.PaymentMethod, arg.AmountPaid, arg.ChangeAmount,
		arg.LoyaltyPointsEarned, arg.Notes))
}

// CreateSaleItemParams carries one snapshot line of a sale.
type CreateSaleItemParams struct {
	SaleID      int64
	ProductID   int64
	ProductName string
	ProductSKU  string
	Quantity    int32
	UnitPrice   int64
	Discount    int64
	LineTotal   int64
}

const createSaleItem = `
INSERT INTO sale_items (sale_id, product_id, product_name, product_sku, quantity, unit_price, discount, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, sale_id, product_id, product_name, product_sku, quantity, unit_price, discount, line_total
`

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	var it SaleItem
	err := q.db.QueryRow(ctx, createSaleItem,
		arg.SaleID, arg.ProductID, arg.ProductName, arg.ProductSKU, arg.Quantity,
		arg.UnitPrice, arg.Discount, arg.LineTotal).
		Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.ProductSKU,
			&it.Quantity, &it.UnitPrice, &it.Discount, &it.LineTotal)
	return it, err
}

const getSale = `
SELECT ` + saleWithNamesColumns + `
FROM sales s
JOIN users u ON u.id = s.user_id
LEFT JOIN customers c ON c.id = s.customer_id
WHERE s.id = $1
`

func (q *Queries) GetSale(ctx context.Context, id int64) (SaleWithNames, error) {
	return scanSaleWithNames(q.db.QueryRow(ctx, getSale, id))
}

const getSaleForUpdate = `
SELECT ` + saleColumns + `
FROM sales
WHERE id = $1
FOR UPDATE
`

// GetSaleForUpdate locks the sale row for a status transition.
func (q *Queries) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, getSaleForUpdate, id))
}

// ListSalesParams filters and paginates sale history.
type ListSalesParams struct {
	UserID     *int64
	CustomerID *int64
	Status     string
	From       pgtype.Timestamptz
	To         pgtype.Timestamptz
	Limit      int32
	Offset     int32
}

const listSales = `
SELECT ` + saleWithNamesColumns + `
FROM sales s
JOIN users u ON u.id = s.user_id
LEFT JOIN customers c ON c.id = s.customer_id
WHERE ($1::bigint IS NULL OR s.user_id = $1)
  AND ($2::bigint IS NULL OR s.customer_id = $2)
  AND ($3 = '' OR s.status = $3)
  AND ($4::timestamptz IS NULL OR s.created_at >= $4)
  AND ($5::timestamptz IS NULL OR s.created_at < $5)
ORDER BY s.created_at DESC
LIMIT $6 OFFSET $7
`

func (q *Queries) ListSales(ctx context.Context, arg ListSalesParams) ([]SaleWithNames, error) {
	rows, err := q.db.Query(ctx, listSales,
		arg.UserID, arg.CustomerID, arg.Status, arg.From, arg.To, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleWithNames
	for rows.Next() {
		s, err := scanSaleWithNames(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const countSales = `
SELECT count(*)
FROM sales
WHERE ($1::bigint IS NULL OR user_id = $1)
  AND ($2::bigint IS NULL OR customer_id = $2)
  AND ($3 = '' OR status = $3)
  AND ($4::timestamptz IS NULL OR created_at >= $4)
  AND ($5::timestamptz IS NULL OR created_at < $5)
`

func (q *Queries) CountSales(ctx context.Context, arg ListSalesParams) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countSales,
		arg.UserID, arg.CustomerID, arg.Status, arg.From, arg.To).Scan(&total)
	return total, err
}

const listSaleItems = `
SELECT id, sale_id, product_id, product_name, product_sku, quantity, unit_price, discount, line_total
FROM sale_items
WHERE sale_id = $1
ORDER BY id ASC
`

func (q *Queries) ListSaleItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	rows, err := q.db.Query(ctx, listSaleItems, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItem
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName,
			&it.ProductSKU, &it.Quantity, &it.UnitPrice, &it.Discount, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const updateSaleStatus = `
UPDATE sales
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + saleColumns + `
`

func (q *Queries) UpdateSaleStatus(ctx context.Context, id int64, status string) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, updateSaleStatus, id, status))
}

const countSalesForDay = `
SELECT count(*)
FROM sales
WHERE created_at >= $1 AND created_at < $2
`

// CountSalesForDay feeds invoice sequence generation. It counts all sales in
// the window regardless of status so refunds never reuse a sequence number.
func (q *Queries) CountSalesForDay(ctx context.Context, from, to pgtype.Timestamptz) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countSalesForDay, from, to).Scan(&total)
	return total, err
}
