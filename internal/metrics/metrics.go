package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	QuoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotegw_quote_requests_total",
			Help: "Quote submissions by outcome",
		},
		[]string{"outcome"}, // sent | rate_limited | invalid_body | ... | transport_failure
	)

	MailDispatchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotegw_mail_dispatch_seconds",
			Help:    "Outbound mail transport latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"transport", "result"}, // ok | error | canceled
	)

	WorkerDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotegw_worker_deliveries_total",
			Help: "Queued emails handled by the mailer worker",
		},
		[]string{"result"}, // delivered | failed | dead_lettered | poison
	)

	RateLimitEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quotegw_ratelimit_entries",
			Help: "Client keys tracked by the in-memory rate limiter",
		},
	)
)

// MustRegister registers the collectors on r. Collectors already registered
// on r are left as they are.
func MustRegister(r prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		QuoteRequestsTotal,
		MailDispatchSeconds,
		WorkerDeliveriesTotal,
		RateLimitEntries,
	} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}
