package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Product is a sellable catalog item.
type Product struct {
	ID                int64
	Name              string
	SKU               string
	Description       pgtype.Text
	CategoryID        int64
	Price             int64
	CostPrice         int64
	StockQuantity     int32
	LowStockThreshold int32
	ImageURL          pgtype.Text
	IsActive          bool
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
}

const productColumns = `id, name, sku, description, category_id, price, cost_price,
	stock_quantity, low_stock_threshold, image_url, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.CategoryID, &p.Price,
		&p.CostPrice, &p.StockQuantity, &p.LowStockThreshold, &p.ImageURL, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListProductsParams filters and paginates the product listing.
type ListProductsParams struct {
	Search          string
	CategoryID      *int64
	IncludeInactive bool
	Limit           int32
	Offset          int32
}

const listProducts = `
SELECT ` + productColumns + `
FROM products
WHERE deleted_at IS NULL
  AND (is_active OR $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')
  AND ($3::bigint IS NULL OR category_id = $3)
ORDER BY name ASC
LIMIT $4 OFFSET $5
`

// ListProducts returns live products matching the filter, ordered by name.
func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.IncludeInactive, arg.Search, arg.CategoryID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const countProducts = `
SELECT count(*)
FROM products
WHERE deleted_at IS NULL
  AND (is_active OR $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')
  AND ($3::bigint IS NULL OR category_id = $3)
`

// CountProducts counts live products matching the filter.
func (q *Queries) CountProducts(ctx context.Context, arg ListProductsParams) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countProducts, arg.IncludeInactive, arg.Search, arg.CategoryID).Scan(&total)
	return total, err
}

const getProduct = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND deleted_at IS NULL
`

// GetProduct fetches a live product by id.
func (q *Queries) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const getProductForUpdate = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND deleted_at IS NULL
FOR UPDATE
`

// GetProductForUpdate fetches a live product under a row lock. Must run inside
// a transaction; the lock serialises concurrent checkouts of the same product.
func (q *Queries) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductForUpdate, id))
}

// CreateProductParams carries the fields required to create a product.
type CreateProductParams struct {
	Name              string
	SKU               string
	Description       pgtype.Text
	CategoryID        int64
	Price             int64
	CostPrice         int64
	StockQuantity     int32
	LowStockThreshold int32
	ImageURL          pgtype.Text
}

const createProduct = `
INSERT INTO products (name, sku, description, category_id, price, cost_price,
	stock_quantity, low_stock_threshold, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + productColumns + `
`

// CreateProduct inserts a product.
func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct,
		arg.Name, arg.SKU, arg.Description, arg.CategoryID, arg.Price, arg.CostPrice,
		arg.StockQuantity, arg.LowStockThreshold, arg.ImageURL))
}

// UpdateProductParams carries the mutable fields of a product.
type UpdateProductParams struct {
	ID                int64
	Name              string
	SKU               string
	Description       pgtype.Text
	CategoryID        int64
	Price             int64
	CostPrice         int64
	StockQuantity     int32
	LowStockThreshold int32
	ImageURL          pgtype.Text
	IsActive          bool
}

const updateProduct = `
UPDATE products
SET name = $2, sku = $3, description = $4, category_id = $5, price = $6,
	cost_price = $7, stock_quantity = $8, low_stock_threshold = $9,
	image_url = $10, is_active = $11, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + productColumns + `
`

// UpdateProduct replaces the mutable fields of a live product.
func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct,
		arg.ID, arg.Name, arg.SKU, arg.Description, arg.CategoryID, arg.Price,
		arg.CostPrice, arg.StockQuantity, arg.LowStockThreshold, arg.ImageURL, arg.IsActive))
}

const softDeleteProduct = `
UPDATE products
SET deleted_at = now(), is_active = FALSE, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

// SoftDeleteProduct marks a product deleted while retaining the row for sale history.
func (q *Queries) SoftDeleteProduct(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, softDeleteProduct, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const decrementStock = `
UPDATE products
SET stock_quantity = stock_quantity - $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL AND stock_quantity >= $2
`

// DecrementStock atomically reduces stock, guarding against going negative.
// A zero affected-row count means the product had insufficient stock and the
// enclosing transaction must abort.
func (q *Queries) DecrementStock(ctx context.Context, id int64, quantity int32) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementStock, id, quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const restockProduct = `
UPDATE products
SET stock_quantity = stock_quantity + $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

// RestockProduct returns quantity to stock, used by refunds.
func (q *Queries) RestockProduct(ctx context.Context, id int64, quantity int32) (int64, error) {
	tag, err := q.db.Exec(ctx, restockProduct, id, quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listLowStockProducts = `
SELECT ` + productColumns + `
FROM products
WHERE deleted_at IS NULL AND is_active AND stock_quantity <= low_stock_threshold
ORDER BY stock_quantity ASC
`

// ListLowStockProducts returns active products at or below their replenishment threshold.
func (q *Queries) ListLowStockProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listLowStockProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
