package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/config"
	"github.com/caleslawncare/quote-gateway/internal/http/middleware"
	"github.com/caleslawncare/quote-gateway/internal/metrics"
	"github.com/caleslawncare/quote-gateway/internal/model"
	"github.com/caleslawncare/quote-gateway/internal/quote"
	"github.com/caleslawncare/quote-gateway/internal/ratelimit"
)

const QuotePath = "/api/send-quote"

// Sender delivers a composed email. *mailer.Dispatcher satisfies it.
type Sender interface {
	Send(ctx context.Context, email model.Email) (string, error)
}

type Deps struct {
	Config   config.Config
	Logger   *zap.Logger
	Limiter  ratelimit.Store
	Composer *quote.Composer
	Sender   Sender
}

type Server struct {
	e      *echo.Echo
	logger *zap.Logger
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := d.Config.AllowedOrigins()

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.OFF)
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(
		echoMid.RecoverWithConfig(echoMid.RecoverConfig{
			DisablePrintStack: true,
			LogErrorFunc: func(c echo.Context, err error, _ []byte) error {
				logger.Error("panic recovered",
					zap.String("request_id", requestID(c)),
					zap.String("error", err.Error()))
				return quote.NewError(quote.UnexpectedError, quote.MsgUnexpected)
			},
		}),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: uuid.NewString}),
		echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
			LogMethod:    true,
			LogURI:       true,
			LogStatus:    true,
			LogLatency:   true,
			LogRequestID: true,
			LogValuesFunc: func(_ echo.Context, v echoMid.RequestLoggerValues) error {
				logger.Info("request",
					zap.String("request_id", v.RequestID),
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency))
				return nil
			},
		}),
		echoMid.CORSWithConfig(echoMid.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType},
		}),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares, outermost first
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Store:          d.Limiter,
		Logger:         logger,
		RetryAfterHint: true,
	})
	originMW := middleware.OriginMiddleware(origins)
	jsonMW := middleware.JSONOnly()
	bodyLimit := d.Config.HTTP.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "64K"
	}

	// routes
	e.POST(QuotePath, sendQuoteHandler(d.Composer, d.Sender, logger),
		rlMW, originMW, jsonMW, echoMid.BodyLimit(bodyLimit))

	return &Server{e: e, logger: logger}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.logger.Info("http: listening", zap.String("addr", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := quote.MsgUnexpected

		var qe *quote.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &qe):
			status, msg = qe.Status(), qe.Message
			metrics.QuoteRequestsTotal.WithLabelValues(qe.Kind.String()).Inc()
		case errors.As(err, &he):
			status = he.Code
			msg = http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			}
		default:
			logger.Error("unhandled error",
				zap.String("request_id", requestID(c)),
				zap.String("error", err.Error()))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, map[string]string{"error": msg})
		}
		if err != nil {
			logger.Warn("write error response", zap.String("error", fmt.Sprint(err)))
		}
	}
}
