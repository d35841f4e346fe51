package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/JackBungart/perceptive-crm/internal/model"
	"github.com/JackBungart/perceptive-crm/internal/repository"
)

// UserIDFromCtx extracts the authenticated user id set by APIKeyMiddleware.
func UserIDFromCtx(c echo.Context) (int64, bool) {
	v := c.Get("user_id")
	id, ok := v.(int64)
	return id, ok
}

// RoleFromCtx extracts the authenticated user's role.
func RoleFromCtx(c echo.Context) (model.Role, bool) {
	v := c.Get("user_role")
	r, ok := v.(model.Role)
	return r, ok
}

// APIKeyMiddleware authenticates requests using the X-API-Key header and
// stores the user's id and role in context. The core trusts the resolved
// role; how keys are provisioned belongs to the surrounding application.
func APIKeyMiddleware(users repository.UsersRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			u, err := users.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if u == nil || u.Status != "active" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set("user_id", u.ID)
			c.Set("user_role", u.Role)
			return next(c)
		}
	}
}

// RequireRole guards a route group to the given roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r, ok := RoleFromCtx(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			if _, ok := allowed[r]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
