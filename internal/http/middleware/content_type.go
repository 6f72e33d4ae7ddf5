package middleware

import (
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/caleslawncare/quote-gateway/internal/quote"
)

// JSONOnly requires a Content-Type containing application/json.
func JSONOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ct := c.Request().Header.Get(echo.HeaderContentType)
			if !strings.Contains(ct, echo.MIMEApplicationJSON) {
				return quote.NewError(quote.BadContentType, quote.MsgBadContentType)
			}
			return next(c)
		}
	}
}
