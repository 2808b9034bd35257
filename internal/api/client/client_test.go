package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/chanbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/chanbridge/internal/domain/registry"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/server"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/wakelock"
	"github.com/GriffinCanCode/chanbridge/internal/testutil"
	"github.com/GriffinCanCode/chanbridge/internal/transport/loopback"
)

func newAdmin(t *testing.T) (*Client, *bridge.Bridge) {
	t.Helper()

	reg := registry.New(registry.DefaultMaxChannels)
	lb := loopback.New()
	for _, d := range reg.Descriptors() {
		lb.Declare(d.Name, loopback.Options{})
	}

	b, err := bridge.New(reg, lb, wakelock.NewMemory(), bridge.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Shutdown() })

	srv := httptest.NewServer(server.New(server.Options{Channels: b}).Handler())
	t.Cleanup(srv.Close)

	return New(srv.URL, 2*time.Second), b
}

func TestChannels(t *testing.T) {
	c, b := newAdmin(t)
	ctx := context.Background()

	require.NoError(t, b.Open(27, testutil.NewRecordingSink()))
	defer b.Close(27)

	channels, err := c.Channels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "SMD_DS", channels[0].Name)
	assert.False(t, channels[0].Open)
	assert.True(t, channels[1].Open)

	one, err := c.Channel(ctx, 27)
	require.NoError(t, err)
	assert.Equal(t, 1, one.OpenCount)
	assert.NotEmpty(t, one.AttachID)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.OpenChannels)
}

func TestErrors(t *testing.T) {
	c, _ := newAdmin(t)
	ctx := context.Background()

	_, err := c.Channel(ctx, 5)
	require.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Message, "not registered")
	assert.NotEmpty(t, apiErr.RequestID)

	assert.ErrorIs(t, c.Unthrottle(ctx, 5), ErrNotFound)
	assert.ErrorIs(t, c.Attach(ctx, 0), ErrNotFound)
}

func TestControl(t *testing.T) {
	c, _ := newAdmin(t)
	ctx := context.Background()

	assert.NoError(t, c.Unthrottle(ctx, 0))

	devices, err := c.Devices(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestRetriesRateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy","channels":2}`))
	}))
	defer srv.Close()

	h, err := New(srv.URL, time.Second).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, h.Channels)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, 200*time.Millisecond).Health(context.Background())
	assert.Error(t, err)
}
