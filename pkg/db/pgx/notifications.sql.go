package pgdb

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const notificationColumns = `id, user_id, project_id, kind, payload, read_at, created_at`

const createNotificationsForUsers = `-- name: CreateNotificationsForUsers :many
INSERT INTO notifications (user_id, project_id, kind, payload)
SELECT u, $2, $3, $4 FROM unnest($1::bigint[]) AS u
RETURNING ` + notificationColumns + `
`

type CreateNotificationsForUsersParams struct {
	UserIDs   []int64         `json:"user_ids"`
	ProjectID pgtype.Int8     `json:"project_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

func (q *Queries) CreateNotificationsForUsers(ctx context.Context, arg CreateNotificationsForUsersParams) ([]Notification, error) {
	rows, err := q.db.Query(ctx, createNotificationsForUsers, arg.UserIDs, arg.ProjectID, arg.Kind, arg.Payload)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Notification])
}

const listNotificationsForUser = `-- name: ListNotificationsForUser :many
SELECT ` + notificationColumns + `
FROM notifications
WHERE user_id = $1
  AND (NOT $2::boolean OR read_at IS NULL)
ORDER BY created_at DESC, id DESC
LIMIT $3
`

type ListNotificationsForUserParams struct {
	UserID     int64 `json:"user_id"`
	UnreadOnly bool  `json:"unread_only"`
	Limit      int32 `json:"limit"`
}

func (q *Queries) ListNotificationsForUser(ctx context.Context, arg ListNotificationsForUserParams) ([]Notification, error) {
	rows, err := q.db.Query(ctx, listNotificationsForUser, arg.UserID, arg.UnreadOnly, arg.Limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Notification])
}

const markNotificationRead = `-- name: MarkNotificationRead :execrows
UPDATE notifications SET read_at = now()
WHERE id = $1 AND user_id = $2 AND read_at IS NULL
`

type MarkNotificationReadParams struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
}

func (q *Queries) MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (int64, error) {
	result, err := q.db.Exec(ctx, markNotificationRead, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
