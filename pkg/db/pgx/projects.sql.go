package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const projectColumns = `id, name, description, owner_id, created_at, updated_at`

const createProject = `-- name: CreateProject :one
INSERT INTO projects (name, description, owner_id)
VALUES ($1, $2, $3)
RETURNING ` + projectColumns

type CreateProjectParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     int64  `json:"owner_id"`
}

func (q *Queries) CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error) {
	rows, err := q.db.Query(ctx, createProject, arg.Name, arg.Description, arg.OwnerID)
	if err != nil {
		return Project{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Project])
}

const getProjectByID = `-- name: GetProjectByID :one
SELECT ` + projectColumns + ` FROM projects WHERE id = $1
`

func (q *Queries) GetProjectByID(ctx context.Context, id int64) (Project, error) {
	rows, err := q.db.Query(ctx, getProjectByID, id)
	if err != nil {
		return Project{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Project])
}

const listAllProjects = `-- name: ListAllProjects :many
SELECT ` + projectColumns + ` FROM projects ORDER BY id
`

func (q *Queries) ListAllProjects(ctx context.Context) ([]Project, error) {
	rows, err := q.db.Query(ctx, listAllProjects)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Project])
}

const listProjectsForUser = `-- name: ListProjectsForUser :many
SELECT p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at
FROM projects p
JOIN project_members m ON m.project_id = p.id
WHERE m.user_id = $1
ORDER BY p.id
`

func (q *Queries) ListProjectsForUser(ctx context.Context, userID int64) ([]Project, error) {
	rows, err := q.db.Query(ctx, listProjectsForUser, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Project])
}

const updateProject = `-- name: UpdateProject :one
UPDATE projects
SET name = $2, description = $3, updated_at = now()
WHERE id = $1
RETURNING ` + projectColumns

type UpdateProjectParams struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (q *Queries) UpdateProject(ctx context.Context, arg UpdateProjectParams) (Project, error) {
	rows, err := q.db.Query(ctx, updateProject, arg.ID, arg.Name, arg.Description)
	if err != nil {
		return Project{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[Project])
}

const deleteProject = `-- name: DeleteProject :execrows
DELETE FROM projects WHERE id = $1
`

func (q *Queries) DeleteProject(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteProject, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const addProjectMember = `-- name: AddProjectMember :one
INSERT INTO project_members (project_id, user_id, role)
VALUES ($1, $2, $3)
ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role
RETURNING project_id, user_id, role, created_at
`

type AddProjectMemberParams struct {
	ProjectID int64  `json:"project_id"`
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
}

func (q *Queries) AddProjectMember(ctx context.Context, arg AddProjectMemberParams) (ProjectMember, error) {
	rows, err := q.db.Query(ctx, addProjectMember, arg.ProjectID, arg.UserID, arg.Role)
	if err != nil {
		return ProjectMember{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[ProjectMember])
}

const getProjectMember = `-- name: GetProjectMember :one
SELECT project_id, user_id, role, created_at
FROM project_members
WHERE project_id = $1 AND user_id = $2
`

type GetProjectMemberParams struct {
	ProjectID int64 `json:"project_id"`
	UserID    int64 `json:"user_id"`
}

func (q *Queries) GetProjectMember(ctx context.Context, arg GetProjectMemberParams) (ProjectMember, error) {
	rows, err := q.db.Query(ctx, getProjectMember, arg.ProjectID, arg.UserID)
	if err != nil {
		return ProjectMember{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[ProjectMember])
}

const removeProjectMember = `-- name: RemoveProjectMember :execrows
DELETE FROM project_members
WHERE project_id = $1 AND user_id = $2 AND role <> 'owner'
`

type RemoveProjectMemberParams struct {
	ProjectID int64 `json:"project_id"`
	UserID    int64 `json:"user_id"`
}

func (q *Queries) RemoveProjectMember(ctx context.Context, arg RemoveProjectMemberParams) (int64, error) {
	result, err := q.db.Exec(ctx, removeProjectMember, arg.ProjectID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listProjectMembers = `-- name: ListProjectMembers :many
SELECT m.user_id, m.role, u.email, u.name, m.created_at
FROM project_members m
JOIN users u ON u.id = m.user_id
WHERE m.project_id = $1
ORDER BY m.created_at, m.user_id
`

type ListProjectMembersRow struct {
	UserID    int64              `db:"user_id" json:"user_id"`
	Role      string             `db:"role" json:"role"`
	Email     string             `db:"email" json:"email"`
	Name      string             `db:"name" json:"name"`
	CreatedAt pgtype.Timestamptz `db:"created_at" json:"created_at"`
}

func (q *Queries) ListProjectMembers(ctx context.Context, projectID int64) ([]ListProjectMembersRow, error) {
	rows, err := q.db.Query(ctx, listProjectMembers, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ListProjectMembersRow])
}

const listProjectMemberIDs = `-- name: ListProjectMemberIDs :many
SELECT user_id FROM project_members WHERE project_id = $1 ORDER BY user_id
`

func (q *Queries) ListProjectMemberIDs(ctx context.Context, projectID int64) ([]int64, error) {
	rows, err := q.db.Query(ctx, listProjectMemberIDs, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
