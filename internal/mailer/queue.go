package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caleslawncare/quote-gateway/internal/model"
	"github.com/caleslawncare/quote-gateway/internal/util"
)

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// QueueTransport hands emails to the mailer worker through a topic.
// The returned id is the envelope id, not a provider id.
type QueueTransport struct {
	pub Publisher
	now func() time.Time
}

func NewQueueTransport(pub Publisher) *QueueTransport {
	return &QueueTransport{pub: pub, now: time.Now}
}

func (t *QueueTransport) Name() string { return "kafka" }

func (t *QueueTransport) Send(ctx context.Context, email model.Email) (string, error) {
	env := model.Envelope{
		ID:       util.New(),
		Email:    email,
		QueuedAt: t.now().UTC(),
	}

	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("queue: encode envelope: %w", err)
	}

	if err := t.pub.Publish(ctx, []byte(env.ID), b); err != nil {
		return "", fmt.Errorf("queue: publish: %w", err)
	}

	return env.ID, nil
}
