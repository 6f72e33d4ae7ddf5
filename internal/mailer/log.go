package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/model"
	"github.com/caleslawncare/quote-gateway/internal/util"
)

// LogTransport writes emails to the log instead of delivering them.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(_ context.Context, email model.Email) (string, error) {
	id := util.New()
	t.logger.Info("email (not delivered)",
		zap.String("id", id),
		zap.String("from", email.From),
		zap.Strings("to", email.To),
		zap.String("subject", email.Subject),
		zap.Int("html_bytes", len(email.HTML)),
	)
	return id, nil
}
