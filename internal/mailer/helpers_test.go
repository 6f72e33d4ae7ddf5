package mailer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/caleslawncare/quote-gateway/internal/model"
)

type fakeTransport struct {
	name  string
	fail  atomic.Bool
	calls atomic.Int32
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(_ context.Context, _ model.Email) (string, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return "", errors.New(f.name + " down")
	}
	return f.name + "-id", nil
}

type fakePublisher struct {
	mu   sync.Mutex
	keys [][]byte
	vals [][]byte
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.vals = append(p.vals, value)
	return nil
}

func testEmail() model.Email {
	return model.Email{
		From:    "Quote Request <onboarding@resend.dev>",
		To:      []string{"owner@example.com"},
		Subject: "New Quote Request from John Doe",
		HTML:    "<p>Hello</p>",
	}
}
