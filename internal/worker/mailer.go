package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/kafka"
	"github.com/caleslawncare/quote-gateway/internal/metrics"
	"github.com/caleslawncare/quote-gateway/internal/model"
)

// Source is satisfied by kafka.Consumer.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Sender is satisfied by mailer.Dispatcher.
type Sender interface {
	Send(ctx context.Context, email model.Email) (string, error)
}

// Mailer:
// - fetches envelopes queued by the kafka transport,
// - delivers each once through a direct transport,
// - republishes undeliverable envelopes to DeadLetter when set,
// - commits the offset whatever the outcome (poison included).
type Mailer struct {
	Source  Source
	Sender  Sender
	Logger  *zap.Logger
	Workers int // number of goroutines delivering messages

	DeadLetter Publisher // optional; receives envelopes whose delivery failed

	FetchBackoff time.Duration // pause after a fetch error
}

func NewMailer(src Source, sender Sender, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		Source:       src,
		Sender:       sender,
		Logger:       logger,
		Workers:      4,
		FetchBackoff: 200 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled and all in-flight deliveries finish.
func (w *Mailer) Run(ctx context.Context) error {
	if w.Source == nil || w.Sender == nil {
		return errors.New("mailer: source and sender are required")
	}
	if w.Workers <= 0 {
		w.Workers = 4
	}
	if w.FetchBackoff <= 0 {
		w.FetchBackoff = 200 * time.Millisecond
	}

	msgCh := make(chan kafka.Message, w.Workers*2)

	// fetcher
	go func() {
		defer close(msgCh)
		for {
			m, err := w.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Logger.Warn("kafka fetch failed", zap.String("error", err.Error()))
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.FetchBackoff):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range msgCh {
				w.processOne(ctx, m)
			}
		}()
	}

	wg.Wait()
	return nil
}

func (w *Mailer) processOne(ctx context.Context, m kafka.Message) {
	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.ID == "" || len(env.Email.To) == 0 {
		reason := "envelope missing id or recipients"
		if err != nil {
			reason = err.Error()
		}
		w.Logger.Warn("skipping bad envelope",
			zap.Int64("offset", m.Offset),
			zap.String("error", reason))
		metrics.WorkerDeliveriesTotal.WithLabelValues("poison").Inc()
		w.commit(ctx, m)
		return
	}

	id, err := w.Sender.Send(ctx, env.Email)
	if err != nil {
		w.Logger.Error("deliver queued email failed",
			zap.String("envelope_id", env.ID),
			zap.String("error", err.Error()))
		metrics.WorkerDeliveriesTotal.WithLabelValues("failed").Inc()
		w.deadLetter(ctx, env.ID, m.Value)
	} else {
		w.Logger.Info("queued email delivered",
			zap.String("envelope_id", env.ID),
			zap.String("provider_id", id),
			zap.Duration("queued_for", time.Since(env.QueuedAt)))
		metrics.WorkerDeliveriesTotal.WithLabelValues("delivered").Inc()
	}

	w.commit(ctx, m)
}

// deadLetter keeps a failed envelope for inspection or manual replay.
func (w *Mailer) deadLetter(ctx context.Context, id string, value []byte) {
	if w.DeadLetter == nil {
		return
	}
	if err := w.DeadLetter.Publish(ctx, []byte(id), value); err != nil {
		w.Logger.Error("dead-letter publish failed",
			zap.String("envelope_id", id),
			zap.String("error", err.Error()))
		return
	}
	metrics.WorkerDeliveriesTotal.WithLabelValues("dead_lettered").Inc()
}

func (w *Mailer) commit(ctx context.Context, m kafka.Message) {
	if err := w.Source.Commit(ctx, m); err != nil {
		w.Logger.Warn("kafka commit failed", zap.String("error", err.Error()))
	}
}
