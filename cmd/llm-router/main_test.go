package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/llm-router/config"
)

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "info")
		t.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("development console logger", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("LOG_FORMAT", "console")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("invalid log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "invalid")
		t.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults when not set", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		t.Setenv("LOG_FORMAT", "")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
	})
}

func TestNewServer(t *testing.T) {
	cfg, err := config.Parse(map[string]string{"PORT": "9090", "READ_TIMEOUT": "15s"})
	require.NoError(t, err)

	srv := newServer(cfg, http.NotFoundHandler())
	assert.Equal(t, "0.0.0.0:9090", srv.Addr)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
	assert.Equal(t, 120*time.Second, srv.WriteTimeout)
	assert.Equal(t, 30*time.Second, srv.IdleTimeout)
}

func TestServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, ln, time.Second, zaptest.NewLogger(t)) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get("http://" + ln.Addr().String())
	assert.Error(t, err)
}

func TestServe_ListenerFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = serve(context.Background(), &http.Server{}, ln, time.Second, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}
