package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
)

var (
	ErrNoProjectAccess = errors.New("not a member of this project")
	ErrReadOnly        = errors.New("read-only access to this project")
)

func HasPermission(user *AppUser, permission string) bool {
	if user == nil {
		return false
	}
	return slices.Contains(user.Permissions, permission)
}

func IsAdmin(user *AppUser) bool {
	if user == nil {
		return false
	}
	return user.Role == "admin"
}

func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			if !HasPermission(user, permission) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: missing permission " + permission})
			}

			return next(c)
		}
	}
}

// MemberLookup is the query ProjectRole needs.
type MemberLookup interface {
	GetProjectMember(ctx context.Context, arg pgdb.GetProjectMemberParams) (pgdb.ProjectMember, error)
}

// ProjectRole returns the caller's role in a project. Admins act as owners
// of every project.
func ProjectRole(ctx context.Context, q MemberLookup, user *AppUser, projectID int64) (common.ProjectRole, error) {
	if user == nil {
		return "", ErrNoProjectAccess
	}
	if IsAdmin(user) || HasPermission(user, "project.view:all") {
		return common.RoleOwner, nil
	}

	member, err := q.GetProjectMember(ctx, pgdb.GetProjectMemberParams{
		ProjectID: projectID,
		UserID:    user.UserID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoProjectAccess
	}
	if err != nil {
		return "", err
	}
	return common.ProjectRole(member.Role), nil
}

// CheckProjectAccess fails with ErrNoProjectAccess for non-members and with
// ErrReadOnly when write is set and the member is a viewer.
func CheckProjectAccess(ctx context.Context, q MemberLookup, user *AppUser, projectID int64, write bool) error {
	role, err := ProjectRole(ctx, q, user, projectID)
	if err != nil {
		return err
	}
	if write && !role.CanWrite() {
		return ErrReadOnly
	}
	return nil
}
