package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/quote"
	"github.com/caleslawncare/quote-gateway/internal/ratelimit"
)

// RateLimitConfig config for the per-client fixed-window limiter.
type RateLimitConfig struct {
	Store          ratelimit.Store
	Logger         *zap.Logger
	RetryAfterHint bool             // set Retry-After header when limited
	Now            func() time.Time // default time.Now
}

// ClientKey identifies the caller: the first X-Forwarded-For entry, then
// X-Real-IP, then "unknown".
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}
	return "unknown"
}

// RateLimitMiddleware rejects callers over their window budget with 429.
// A failing store lets the request through.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Store == nil {
				return next(c)
			}

			key := ClientKey(c.Request())
			d, err := cfg.Store.Allow(c.Request().Context(), key)
			if err != nil {
				cfg.Logger.Warn("rate limiter unavailable, allowing request",
					zap.String("error", err.Error()))
				return next(c)
			}

			if !d.Allowed {
				if cfg.RetryAfterHint {
					secs := int(math.Ceil(d.RetryAfter(cfg.Now()).Seconds()))
					if secs < 1 {
						secs = 1
					}
					c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				}
				return quote.NewError(quote.RateLimited, quote.MsgRateLimited)
			}
			return next(c)
		}
	}
}
