package middleware

import (
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/caleslawncare/quote-gateway/internal/quote"
)

// OriginAllowed reports whether origin starts with one of the allowed prefixes.
func OriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a != "" && strings.HasPrefix(origin, a) {
			return true
		}
	}
	return false
}

// OriginMiddleware rejects requests whose Origin header matches no allowed
// prefix. Requests without an Origin header pass.
func OriginMiddleware(allowed []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin != "" && !OriginAllowed(origin, allowed) {
				return quote.NewError(quote.UnauthorizedOrigin, quote.MsgUnauthorizedOrigin)
			}
			return next(c)
		}
	}
}
