package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = RateLimitConfig{Requests: 100, Window: time.Minute}
	s := New(cfg, NewStore())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/hello?name=server")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "Hello server", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server didn't stop in time")
	}
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	s := New(DefaultConfig(), NewStore())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestServer_StartBadAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "256.256.256.256:1"
	assert.Error(t, New(cfg, NewStore()).Start())
}

func TestServer_InstancesDoNotShareState(t *testing.T) {
	a := newTestServer(t)
	b := newTestServer(t)

	get(t, a, "/updateArrayList?string=only-a", nil)

	assert.Equal(t, "[]", get(t, b, "/showArrayList", nil).Body.String())
	assert.Zero(t, b.Metrics().Snapshot().LogAppendsTotal)
}
