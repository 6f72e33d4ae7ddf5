package mailer

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/config"
	"github.com/caleslawncare/quote-gateway/internal/kafka"
)

// NewTransport builds the transport named by kind together with its breaker.
// The returned close function releases transport resources and is never nil.
func NewTransport(kind string, cfg config.Config, logger *zap.Logger) (Route, func() error, error) {
	noop := func() error { return nil }

	switch kind {
	case "resend":
		t := NewResendTransport(cfg.Resend.BaseURL, cfg.Resend.APIKey, cfg.Resend.TimeoutMs)
		return Route{Transport: t, Breaker: breaker(cfg.Resend.Breaker)}, noop, nil

	case "smtp":
		if cfg.SMTP.Host == "" {
			return Route{}, noop, fmt.Errorf("smtp transport: smtp.host is empty")
		}
		t := NewSMTPTransport(SMTPOpts{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			StartTLS: cfg.SMTP.StartTLS,
			HELO:     cfg.SMTP.HELO,
			Timeout:  cfg.SMTP.Timeout,
		})
		return Route{Transport: t, Breaker: breaker(cfg.SMTP.Breaker)}, noop, nil

	case "kafka":
		p := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		return Route{Transport: NewQueueTransport(p)}, p.Close, nil

	case "log":
		return Route{Transport: NewLogTransport(logger)}, noop, nil

	default:
		return Route{}, noop, fmt.Errorf("unknown mail transport %q", kind)
	}
}

// Build returns a dispatcher over the single transport named by kind.
func Build(kind string, cfg config.Config, logger *zap.Logger) (*Dispatcher, func() error, error) {
	r, closeFn, err := NewTransport(kind, cfg, logger)
	if err != nil {
		return nil, closeFn, err
	}
	logger.Info("mail transport ready", zap.String("transport", r.Transport.Name()))
	return NewDispatcher(r), closeFn, nil
}

func breaker(c config.BreakerConfig) *MicroBreaker {
	return NewMicroBreaker(c.FailThreshold, time.Duration(c.OpenForMs)*time.Millisecond)
}
