package middleware

import (
	"finsync/internal/common"

	"github.com/labstack/echo/v4"
)

// RoleAdmin may inspect and trigger the background jobs.
const RoleAdmin = "admin"

// RequireRole admits callers whose token carries one of roles. It must run
// after the authenticator.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if _, ok := common.GetUserIDFromContext(ctx); !ok {
				return common.SendUnauthorizedError(c)
			}
			if _, ok := allowed[common.GetRoleFromContext(ctx)]; !ok {
				return common.SendForbiddenError(c)
			}
			return next(c)
		}
	}
}
