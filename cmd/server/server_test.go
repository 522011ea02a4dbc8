package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leegeev/topicbroker/pkg/config"
)

func testConfig() *config.Config {
	var cfg config.Config
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeoutS = 5
	cfg.Server.AcceptBurst = 1
	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	return &cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_ServesUntilCancelled(t *testing.T) {
	srv, err := newServer(testConfig(), discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- srv.run(ctx) }()

	conn, err := net.Dial("tcp", srv.broker.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	r := bufio.NewReader(conn)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "!hi\n", line)

	resp, err := http.Get("http://" + srv.metricsLn.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "broker_connections_total")

	cancel()

	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "!bye\n", line)

	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.ListenAddr = ""

	srv, err := newServer(cfg, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, srv.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, srv.run(ctx))
}

func TestServer_ListenFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig()
	cfg.Server.ListenAddr = taken.Addr().String()

	_, err = newServer(cfg, discardLogger())
	assert.ErrorContains(t, err, "listen")
}
