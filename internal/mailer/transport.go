// Package mailer delivers composed quote emails through pluggable transports.
package mailer

import (
	"context"

	"github.com/caleslawncare/quote-gateway/internal/model"
)

// Transport hands one email to an outbound provider and returns the
// provider-assigned message id.
type Transport interface {
	Name() string
	Send(ctx context.Context, email model.Email) (string, error)
}
