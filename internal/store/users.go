package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// User is a staff account. Role is one of admin, manager, cashier.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

const userColumns = `id, name, email, password_hash, role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const listUsers = `
SELECT ` + userColumns + `
FROM users
WHERE deleted_at IS NULL
ORDER BY name ASC
`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const getUser = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUser, id))
}

const getUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND deleted_at IS NULL
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

// CreateUserParams carries the fields required to create a staff account.
type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

const createUser = `
INSERT INTO users (name, email, password_hash, role)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns + `
`

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser, arg.Name, arg.Email, arg.PasswordHash, arg.Role))
}

// UpdateUserParams carries the mutable fields of a staff account.
type UpdateUserParams struct {
	ID       int64
	Name     string
	Email    string
	Role     string
	IsActive bool
}

const updateUser = `
UPDATE users
SET name = $2, email = $3, role = $4, is_active = $5, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + userColumns + `
`

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUser, arg.ID, arg.Name, arg.Email, arg.Role, arg.IsActive))
}

const updateUserPassword = `
UPDATE users
SET password_hash = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, hash string) (int64, error) {
	tag, err := q.db.Exec(ctx, updateUserPassword, id, hash)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const softDeleteUser = `
UPDATE users
SET deleted_at = now(), is_active = FALSE, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) SoftDeleteUser(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, softDeleteUser, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
