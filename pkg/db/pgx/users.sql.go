package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const upsertUser = `-- name: UpsertUser :one
INSERT INTO users (id, email, name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END,
    name  = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END
RETURNING id, email, name, created_at
`

type UpsertUserParams struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) (User, error) {
	rows, err := q.db.Query(ctx, upsertUser, arg.ID, arg.Email, arg.Name)
	if err != nil {
		return User{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[User])
}

const getUser = `-- name: GetUser :one
SELECT id, email, name, created_at FROM users WHERE id = $1
`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	rows, err := q.db.Query(ctx, getUser, id)
	if err != nil {
		return User{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[User])
}

const getUsersByIDs = `-- name: GetUsersByIDs :many
SELECT id, email, name, created_at FROM users WHERE id = ANY($1::bigint[]) ORDER BY id
`

func (q *Queries) GetUsersByIDs(ctx context.Context, ids []int64) ([]User, error) {
	rows, err := q.db.Query(ctx, getUsersByIDs, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[User])
}
