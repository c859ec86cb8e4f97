package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
)

type fakeMembers map[int64]string

func (f fakeMembers) GetProjectMember(_ context.Context, arg pgdb.GetProjectMemberParams) (pgdb.ProjectMember, error) {
	role, ok := f[arg.UserID]
	if !ok {
		return pgdb.ProjectMember{}, pgx.ErrNoRows
	}
	return pgdb.ProjectMember{ProjectID: arg.ProjectID, UserID: arg.UserID, Role: role}, nil
}

func TestCheckProjectAccess(t *testing.T) {
	t.Parallel()

	members := fakeMembers{1: "owner", 2: "editor", 3: "viewer"}
	tests := []struct {
		name  string
		user  *AppUser
		write bool
		want  error
	}{
		{name: "owner writes", user: &AppUser{UserID: 1}, write: true},
		{name: "editor writes", user: &AppUser{UserID: 2}, write: true},
		{name: "viewer reads", user: &AppUser{UserID: 3}},
		{name: "viewer writes", user: &AppUser{UserID: 3}, write: true, want: ErrReadOnly},
		{name: "stranger reads", user: &AppUser{UserID: 4}, want: ErrNoProjectAccess},
		{name: "admin bypasses", user: &AppUser{UserID: 9, Role: "admin"}, write: true},
		{name: "nil user", user: nil, want: ErrNoProjectAccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckProjectAccess(context.Background(), members, tt.user, 7, tt.write)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProjectRole_LookupError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := ProjectRole(context.Background(), failingMembers{err: boom}, &AppUser{UserID: 1}, 7)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

type failingMembers struct{ err error }

func (f failingMembers) GetProjectMember(context.Context, pgdb.GetProjectMemberParams) (pgdb.ProjectMember, error) {
	return pgdb.ProjectMember{}, f.err
}

func TestUserFromClaims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		claims   jwt.MapClaims
		wantOK   bool
		wantID   int64
		wantRole string
		wantPerm string
	}{
		{
			name:     "numeric id with defaults",
			claims:   jwt.MapClaims{"id": float64(42), "email": "a@b.c"},
			wantOK:   true,
			wantID:   42,
			wantRole: "user",
			wantPerm: "project.create",
		},
		{
			name:     "string id",
			claims:   jwt.MapClaims{"id": "17", "role": "user", "permissions": []any{"triage.run"}},
			wantOK:   true,
			wantID:   17,
			wantRole: "user",
			wantPerm: "triage.run",
		},
		{
			name:     "admin gets everything",
			claims:   jwt.MapClaims{"id": float64(1), "role": "admin"},
			wantOK:   true,
			wantID:   1,
			wantRole: "admin",
			wantPerm: "project.view:all",
		},
		{name: "bad string id", claims: jwt.MapClaims{"id": "abc"}},
		{name: "missing id", claims: jwt.MapClaims{}},
		{name: "zero id", claims: jwt.MapClaims{"id": float64(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			user, ok := userFromClaims(tt.claims)
			if ok != tt.wantOK {
				t.Fatalf("got ok=%v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if user.UserID != tt.wantID || user.Role != tt.wantRole {
				t.Fatalf("got (%d, %q), want (%d, %q)", user.UserID, user.Role, tt.wantID, tt.wantRole)
			}
			if !HasPermission(user, tt.wantPerm) {
				t.Fatalf("expected permission %q in %v", tt.wantPerm, user.Permissions)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	app := &App{
		MasterAPIKey:   "secret",
		MasterUserID:   99,
		MasterUserRole: "admin",
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   int64
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "master key", header: "Bearer secret", wantStatus: http.StatusOK, wantUser: 99},
		{name: "unknown token without jwks", header: "Bearer other", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/features", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			ac := &AppContext{Context: e.NewContext(req, rec), App: app}

			var seen *AppUser
			handler := AuthMiddleware(func(c echo.Context) error {
				seen = c.(*AppContext).User
				return c.NoContent(http.StatusOK)
			})
			if err := handler(ac); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantUser != 0 && (seen == nil || seen.UserID != tt.wantUser) {
				t.Fatalf("got user %+v, want id %d", seen, tt.wantUser)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	t.Parallel()

	e := echo.New()
	handler := RequirePermission("project.delete")(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	tests := []struct {
		name string
		user *AppUser
		want int
	}{
		{name: "no user", user: nil, want: http.StatusUnauthorized},
		{name: "missing permission", user: &AppUser{UserID: 1, Permissions: []string{"project.create"}}, want: http.StatusForbidden},
		{name: "granted", user: &AppUser{UserID: 1, Permissions: []string{"project.delete"}}, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			ac := &AppContext{
				Context: e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec),
				App:     &App{},
				User:    tt.user,
			}
			if err := handler(ac); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("got status %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRoleCanWrite(t *testing.T) {
	t.Parallel()
	if common.RoleViewer.CanWrite() || !common.RoleEditor.CanWrite() {
		t.Fatalf("unexpected write permissions for roles")
	}
}
