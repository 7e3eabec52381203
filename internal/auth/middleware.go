package auth

import (
	"slices"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "userhub/internal/errors"
	"userhub/internal/model"
)

// ContextKey is where the verified *Claims are stored on the echo context.
const ContextKey = "user"

// Middleware verifies the bearer token and stores its claims under ContextKey.
func Middleware(svc *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: ContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return svc.ValidateToken(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return respond(apperrors.ErrUnauthorized)
		},
	})
}

// ClaimsFromContext returns the claims stored by Middleware.
func ClaimsFromContext(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(ContextKey).(*Claims)
	return claims, ok && claims != nil
}

// RequireRoles rejects requests whose token role is not in roles.
// It must run after Middleware.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFromContext(c)
			if !ok {
				return respond(apperrors.ErrUnauthorized)
			}
			if !slices.Contains(roles, claims.Role) {
				return respond(apperrors.ErrAccessDenied)
			}
			return next(c)
		}
	}
}

func respond(err error) *echo.HTTPError {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}
