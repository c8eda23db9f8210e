package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Category groups products for browsing and reporting.
type Category struct {
	ID          int64
	Name        string
	Description pgtype.Text
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

const categoryColumns = `id, name, description, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const listCategories = `
SELECT ` + categoryColumns + `
FROM categories
WHERE deleted_at IS NULL
ORDER BY name ASC
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getCategory = `
SELECT ` + categoryColumns + `
FROM categories
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategory, id))
}

const createCategory = `
INSERT INTO categories (name, description)
VALUES ($1, $2)
RETURNING ` + categoryColumns + `
`

func (q *Queries) CreateCategory(ctx context.Context, name string, description pgtype.Text) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, createCategory, name, description))
}

const updateCategory = `
UPDATE categories
SET name = $2, description = $3, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + categoryColumns + `
`

func (q *Queries) UpdateCategory(ctx context.Context, id int64, name string, description pgtype.Text) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, updateCategory, id, name, description))
}

const softDeleteCategory = `
UPDATE categories
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) SoftDeleteCategory(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, softDeleteCategory, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const countActiveProductsInCategory = `
SELECT count(*)
FROM products
WHERE category_id = $1 AND deleted_at IS NULL
`

// CountActiveProductsInCategory guards category deletion while products still
// reference the category.
func (q *Queries) CountActiveProductsInCategory(ctx context.Context, id int64) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countActiveProductsInCategory, id).Scan(&total)
	return total, err
}
