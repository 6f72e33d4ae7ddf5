package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/config"
	"github.com/caleslawncare/quote-gateway/internal/model"
)

func TestQueueTransportPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	tr := NewQueueTransport(pub)

	id, err := tr.Send(context.Background(), testEmail())
	require.NoError(t, err)
	require.Len(t, pub.vals, 1)

	var env model.Envelope
	require.NoError(t, json.Unmarshal(pub.vals[0], &env))
	assert.Equal(t, id, env.ID)
	assert.Equal(t, id, string(pub.keys[0]))
	assert.Equal(t, testEmail(), env.Email)
	assert.False(t, env.QueuedAt.IsZero())
}

func TestQueueTransportPublishError(t *testing.T) {
	tr := NewQueueTransport(&fakePublisher{err: errors.New("broker unavailable")})
	_, err := tr.Send(context.Background(), testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestLogTransport(t *testing.T) {
	id, err := NewLogTransport(zap.NewNop()).Send(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Len(t, id, 26)
}

func TestNewTransport(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	r, closeFn, err := NewTransport("resend", cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "resend", r.Transport.Name())
	assert.NotNil(t, r.Breaker)
	require.NoError(t, closeFn())

	_, _, err = NewTransport("smtp", cfg, zap.NewNop())
	require.Error(t, err, "smtp host is empty by default")

	_, _, err = NewTransport("carrier-pigeon", cfg, zap.NewNop())
	require.Error(t, err)

	d, closeFn, err := Build("log", cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"log"}, d.Names())
	require.NoError(t, closeFn())
}
