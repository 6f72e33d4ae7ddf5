package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/caleslawncare/quote-gateway/internal/metrics"
	"github.com/caleslawncare/quote-gateway/internal/model"
)

var ErrNoHealthy = errors.New("no healthy mail transports")

// Route pairs a transport with the breaker guarding it. A nil breaker means
// the transport is always tried.
type Route struct {
	Transport Transport
	Breaker   *MicroBreaker
}

// Dispatcher sends each email with exactly one attempt on the first transport
// whose breaker admits the call. Failures are returned to the caller as is;
// nothing is retried.
type Dispatcher struct {
	routes []Route
}

func NewDispatcher(routes ...Route) *Dispatcher {
	return &Dispatcher{routes: routes}
}

func (d *Dispatcher) selectRoute() (Route, error) {
	for _, r := range d.routes {
		if r.Breaker == nil || r.Breaker.TryAcquire() {
			return r, nil
		}
	}
	return Route{}, ErrNoHealthy
}

// Send returns the provider message id on success.
func (d *Dispatcher) Send(ctx context.Context, email model.Email) (string, error) {
	r, err := d.selectRoute()
	if err != nil {
		return "", err
	}

	start := time.Now()
	id, err := r.Transport.Send(ctx, email)
	result := "ok"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		result = "canceled"
	default:
		result = "error"
	}
	metrics.MailDispatchSeconds.WithLabelValues(r.Transport.Name(), result).Observe(time.Since(start).Seconds())

	if r.Breaker != nil {
		switch {
		case err == nil:
			r.Breaker.OnSuccess()
		case ctx.Err() != nil:
			r.Breaker.OnAbort()
		default:
			r.Breaker.OnFailure()
		}
	}

	return id, err
}

// Names lists the configured transports in dispatch order.
func (d *Dispatcher) Names() []string {
	out := make([]string, 0, len(d.routes))
	for _, r := range d.routes {
		out = append(out, r.Transport.Name())
	}
	return out
}
