package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/config"
	"github.com/caleslawncare/quote-gateway/internal/db"
	httpSrv "github.com/caleslawncare/quote-gateway/internal/http"
	"github.com/caleslawncare/quote-gateway/internal/mailer"
	"github.com/caleslawncare/quote-gateway/internal/quote"
	"github.com/caleslawncare/quote-gateway/internal/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		limiter, closeLimiter, err := newLimiter(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeLimiter()

		tmpl, err := quote.LoadTemplate(cfg.Mail.TemplatePath)
		if err != nil {
			return fmt.Errorf("load template: %w", err)
		}
		if missing := tmpl.Missing(); len(missing) > 0 {
			logger.Warn("email template does not use every field", zap.Strings("missing", missing))
		}

		dispatcher, closeMail, err := mailer.Build(cfg.Mail.Transport, cfg, logger)
		if err != nil {
			return fmt.Errorf("mail transport: %w", err)
		}
		defer func() { _ = closeMail() }()

		server := httpSrv.NewServer(httpSrv.Deps{
			Config:   cfg,
			Logger:   logger,
			Limiter:  limiter,
			Composer: quote.NewComposer(tmpl, cfg.Mail.From, cfg.Mail.To),
			Sender:   dispatcher,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				logger.Error("http server exited", zap.String("error", err.Error()))
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

// newLimiter builds the configured rate limit store.
func newLimiter(ctx context.Context, cfg config.Config, logger *zap.Logger) (ratelimit.Store, func(), error) {
	opts := ratelimit.Options{
		MaxRequests:   cfg.RateLimit.MaxRequests,
		Window:        cfg.RateLimit.Window,
		SweepInterval: cfg.RateLimit.SweepInterval,
		KeyPrefix:     cfg.RateLimit.KeyPrefix,
	}

	switch cfg.RateLimit.Backend {
	case "redis":
		rdb, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis connect: %w", err)
		}
		logger.Info("rate limiter: redis", zap.String("addr", cfg.Redis.Addr))
		return ratelimit.NewRedisStore(rdb, opts), func() { _ = rdb.Close() }, nil
	default:
		store := ratelimit.NewMemoryStore(opts, logger)
		logger.Info("rate limiter: memory")
		return store, store.Stop, nil
	}
}
