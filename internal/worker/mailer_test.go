package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/kafka"
	"github.com/caleslawncare/quote-gateway/internal/metrics"
	"github.com/caleslawncare/quote-gateway/internal/model"
)

type chanSource struct {
	ch        chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (s *chanSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-s.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *chanSource) Commit(_ context.Context, m kafka.Message) error {
	s.mu.Lock()
	s.committed = append(s.committed, m.Offset)
	s.mu.Unlock()
	return nil
}

func (s *chanSource) Committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

type recordingSender struct {
	mu       sync.Mutex
	subjects []string
	failFor  string
}

func (r *recordingSender) Send(_ context.Context, e model.Email) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, e.Subject)
	if e.Subject == r.failFor {
		return "", errors.New("smtp: RCPT TO: 550 mailbox unavailable")
	}
	return "provider-id", nil
}

func (r *recordingSender) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects)
}

func envelope(t *testing.T, id, subject string) []byte {
	t.Helper()
	b, err := json.Marshal(model.Envelope{
		ID:       id,
		QueuedAt: time.Now(),
		Email: model.Email{
			From:    "Quote Request <onboarding@resend.dev>",
			To:      []string{"owner@example.com"},
			Subject: subject,
			HTML:    "<p>hi</p>",
		},
	})
	require.NoError(t, err)
	return b
}

func TestMailerDeliversAndCommitsEverything(t *testing.T) {
	src := &chanSource{ch: make(chan kafka.Message, 8)}
	sender := &recordingSender{failFor: "fails"}

	src.ch <- kafka.Message{Offset: 1, Value: envelope(t, "01J0000000000000000000000A", "ok")}
	src.ch <- kafka.Message{Offset: 2, Value: []byte(`not json`)}
	src.ch <- kafka.Message{Offset: 3, Value: envelope(t, "01J0000000000000000000000B", "fails")}
	src.ch <- kafka.Message{Offset: 4, Value: envelope(t, "", "no id")}

	w := NewMailer(src, sender, zap.NewNop())
	w.Workers = 2

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return src.Committed() == 4 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Equal(t, 2, sender.Count(), "poison envelopes are not delivered")
}

func TestMailerRequiresDependencies(t *testing.T) {
	err := (&Mailer{}).Run(context.Background())
	require.Error(t, err)
}

type memPublisher struct {
	mu   sync.Mutex
	keys []string
	vals [][]byte
}

func (p *memPublisher) Publish(_ context.Context, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, string(key))
	p.vals = append(p.vals, value)
	return nil
}

func (p *memPublisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func TestMailerDeadLettersFailedDeliveries(t *testing.T) {
	src := &chanSource{ch: make(chan kafka.Message, 4)}
	sender := &recordingSender{failFor: "fails"}
	dlq := &memPublisher{}

	failedEnv := envelope(t, "01J0000000000000000000000C", "fails")
	src.ch <- kafka.Message{Offset: 10, Value: envelope(t, "01J0000000000000000000000D", "ok")}
	src.ch <- kafka.Message{Offset: 11, Value: failedEnv}

	failed := metrics.WorkerDeliveriesTotal.WithLabelValues("failed")
	dead := metrics.WorkerDeliveriesTotal.WithLabelValues("dead_lettered")
	failedBefore, deadBefore := testutil.ToFloat64(failed), testutil.ToFloat64(dead)

	w := NewMailer(src, sender, zap.NewNop())
	w.Workers = 1
	w.DeadLetter = dlq

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return src.Committed() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"01J0000000000000000000000C"}, dlq.Keys())
	assert.Equal(t, failedEnv, dlq.vals[0])
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
	assert.Equal(t, deadBefore+1, testutil.ToFloat64(dead))
}
