package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/tkceria/ceria/core/user"
)

// roleMiddleware lets through active users holding one of roles.
func roleMiddleware(auth *authAPI, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !hasRole(claims.Role, roles) {
				return errHttpForbidden
			}
			// the role may have changed since the token was issued
			usr, err := auth.contextUser(ctx)
			if err != nil {
				return err
			}
			if !hasRole(usr.Role, roles) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

func adminMiddleware(auth *authAPI) echo.MiddlewareFunc {
	return roleMiddleware(auth, user.RoleAdmin)
}

func staffMiddleware(auth *authAPI) echo.MiddlewareFunc {
	return roleMiddleware(auth, user.RoleAdmin, user.RoleTeacher)
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
