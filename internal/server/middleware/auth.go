package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/logger"
)

var allPermissions = []string{
	"project.create",
	"project.delete",
	"project.view:all",
	"triage.run",
	"summary.generate",
}

// defaultPermissions are granted to every authenticated user whose token
// carries no explicit permission list.
var defaultPermissions = []string{
	"project.create",
	"project.delete",
	"triage.run",
	"summary.generate",
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		ac := c.(*AppContext)
		app := ac.App

		// Master API Key bypass
		if app.MasterAPIKey != "" && app.MasterUserID != 0 && app.MasterUserRole != "" && token == app.MasterAPIKey {
			ac.User = &AppUser{
				UserID:      app.MasterUserID,
				Name:        "Master",
				Role:        app.MasterUserRole,
				Permissions: allPermissions,
			}
			if err := syncUser(c, ac); err != nil {
				return err
			}
			return next(c)
		}

		if app.Key == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		// Parse JWT token
		k := *app.Key
		parsed, err := jwt.Parse(token, k.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		user, ok := userFromClaims(claims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user ID"})
		}
		ac.User = user

		if err := syncUser(c, ac); err != nil {
			return err
		}
		return next(c)
	}
}

func userFromClaims(claims jwt.MapClaims) (*AppUser, bool) {
	var userID int64
	switch id := claims["id"].(type) {
	case string:
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, false
		}
		userID = parsed
	case float64:
		userID = int64(id)
	default:
		return nil, false
	}
	if userID <= 0 {
		return nil, false
	}

	role := "user"
	if roleClaim, ok := claims["role"].(string); ok {
		role = roleClaim
	}

	var permissions []string
	if permsClaim, ok := claims["permissions"].([]any); ok {
		for _, p := range permsClaim {
			if pStr, ok := p.(string); ok {
				permissions = append(permissions, pStr)
			}
		}
	}

	if len(permissions) == 0 {
		if role == "admin" {
			permissions = allPermissions
		} else {
			permissions = defaultPermissions
		}
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &AppUser{
		UserID:      userID,
		Email:       email,
		Name:        name,
		Role:        role,
		Permissions: permissions,
	}, true
}

// syncUser keeps the users table in step with the identity provider so
// memberships and notifications can reference the caller.
func syncUser(c echo.Context, ac *AppContext) error {
	if ac.App.DBConn == nil {
		return nil
	}
	_, err := pgdb.New(ac.App.DBConn).UpsertUser(c.Request().Context(), pgdb.UpsertUserParams{
		ID:    ac.User.UserID,
		Email: ac.User.Email,
		Name:  ac.User.Name,
	})
	if err != nil {
		logger.Error("Failed to sync user", "user_id", ac.User.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return nil
}
