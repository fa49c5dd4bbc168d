package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/metric"
)

func TestConnectionStatus_String(t *testing.T) {
	tests := []struct {
		status   ConnectionStatus
		expected string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{StatusClosed, "closed"},
		{ConnectionStatus(42), "unknown"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.status.String())
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithName("alusync-hub"),
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithTimeout(time.Second),
		WithMetrics(metric.NewMetricsRegistry()),
	)
	require.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, "alusync-hub", c.clientName)
	assert.NotNil(t, c.metrics)
}

func TestNewClient_InvalidOptions(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewClient("nats://localhost:4222", WithTimeout(0))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewClient("nats://localhost:4222", WithReconnectWait(-time.Second))
	assert.Error(t, err)
}

func TestClient_PublishWithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = c.Publish(context.Background(), "alusync.events", []byte("{}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.True(t, errors.IsTransient(err))
}

func TestClient_ConnectUnreachable(t *testing.T) {
	var seen []ConnectionStatus
	c, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(200*time.Millisecond),
		WithStatusCallback(func(s ConnectionStatus) { seen = append(seen, s) }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = c.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, int32(1), c.Failures())
	assert.Equal(t, []ConnectionStatus{StatusConnecting, StatusDisconnected}, seen)
}

func TestClient_CloseIdempotent(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, StatusClosed, c.Status())

	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, errors.ErrClosed)
}
