package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusnet/internal/core/game"
	"github.com/zeusync/zeusnet/internal/core/network"
	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/observability/metrics"
	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/internal/core/session"
)

const arenaJSON = `{
	"title": "Arena",
	"minPlayers": 1,
	"maxPlayers": 2,
	"maxInstances": 1,
	"lobby": "OpenWorld",
	"startGame": "Level",
	"playerTemplate": "Player",
	"scenes": [
		{"Level": {
			"systems": ["position"],
			"templates": [
				{"Player": {
					"Transform2D": {"position": {"x": 0, "y": 0}},
					"Movable2D": {"acceleration": {"x": 1, "y": 1}},
					"Control2D": {"up": true, "down": true, "left": true, "right": true},
					"Tag": "Player"
				}}
			]
		}}
	]
}`

func newTestServer(t *testing.T, clientTimeout time.Duration) *Server {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Arena"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Arena", game.ConfigJSON), []byte(arenaJSON), 0o644))

	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.GameDir = root
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.PollTimeout = 20 * time.Millisecond
	cfg.ClientTimeout = clientTimeout
	cfg.MinTickInterval = 5 * time.Millisecond
	require.NoError(t, cfg.Validate())

	registry := prometheus.NewRegistry()
	collectors := metrics.New(metrics.WithRegistry(registry))
	logger := log.Nop()

	sessions := session.NewManager(
		session.WithTimeout(cfg.ClientTimeout),
		session.WithMetrics(collectors),
		session.WithLogger(logger),
	)
	games, err := game.NewManager(cfg.GameDir, game.Options{
		MaxPacketsPerTick: cfg.MaxPacketsPerTick,
		MinTickInterval:   cfg.MinTickInterval,
		ClientTimeout:     cfg.ClientTimeout,
		Clock:             sessions.Clock(),
		Flusher:           sessions,
		Metrics:           collectors,
		Logger:            logger,
	})
	require.NoError(t, err)

	return New(cfg, logger, collectors, registry, sessions, games)
}

func startTestServer(t *testing.T, clientTimeout time.Duration) *Server {
	t.Helper()
	s := newTestServer(t, clientTimeout)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dial(t *testing.T, s *Server) *net.UDPConn {
	t.Helper()
	raddr, err := net.ResolveUDPAddr("udp4", s.Address().HostPort())
	require.NoError(t, err)
	conn, err := net.DialUDP("udp4", nil, raddr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *net.UDPConn, p *protocol.Packet) {
	t.Helper()
	data, err := p.Marshal()
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)
}

// expect reads datagrams until one carries cmd.
func expect(t *testing.T, conn *net.UDPConn, cmd protocol.CommandID) protocol.Packet {
	t.Helper()
	buf := make([]byte, 64*1024)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		n, err := conn.Read(buf)
		require.NoError(t, err, "waiting for %s", cmd)
		packets, err := protocol.DecodeDatagram(buf[:n])
		require.NoError(t, err)
		for _, p := range packets {
			if p.Header.Command == cmd {
				return p
			}
		}
	}
}

func TestServer_ConnectAndDisconnect(t *testing.T) {
	s := startTestServer(t, 5*time.Second)
	conn := dial(t, s)

	connect := protocol.NewPacket(protocol.ReqConnect)
	require.NoError(t, connect.WriteString("Arena"))
	require.NoError(t, connect.WriteString("alice"))
	send(t, conn, connect)
	expect(t, conn, protocol.RepConnect)

	require.Eventually(t, func() bool {
		stats := s.Stats()
		return len(stats.Games) == 1 && stats.Games[0].Players == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.Sessions().Len())

	send(t, conn, protocol.NewPacket(protocol.ReqDisconnect))
	expect(t, conn, protocol.RepDisconnect)
	require.Eventually(t, func() bool {
		return s.Sessions().Len() == 0 && len(s.Games().Instances("Arena")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_HeartbeatOutsideGame(t *testing.T) {
	s := startTestServer(t, 5*time.Second)
	conn := dial(t, s)

	send(t, conn, protocol.NewPacket(protocol.ReqHeartbeat))
	expect(t, conn, protocol.RepHeartbeat)
	assert.Equal(t, 1, s.Sessions().Len())
}

func TestServer_EvictsSilentClients(t *testing.T) {
	s := startTestServer(t, 100*time.Millisecond)
	conn := dial(t, s)

	send(t, conn, protocol.NewPacket(protocol.ReqHeartbeat))
	expect(t, conn, protocol.RepHeartbeat)

	require.Eventually(t, func() bool {
		return s.Sessions().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_UnknownGame(t *testing.T) {
	s := startTestServer(t, 5*time.Second)
	conn := dial(t, s)

	connect := protocol.NewPacket(protocol.ReqConnect)
	require.NoError(t, connect.WriteString("Nope"))
	send(t, conn, connect)
	send(t, conn, protocol.NewPacket(protocol.ReqHeartbeat))
	// the connect is dropped, the session stays
	expect(t, conn, protocol.RepHeartbeat)
	assert.Empty(t, s.Games().Instances("Nope"))
}

func TestServer_Lifecycle(t *testing.T) {
	s := newTestServer(t, time.Second)

	assert.ErrorIs(t, s.Stop(context.Background()), ErrServerNotRunning)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrServerAlreadyRunning)
	assert.NotZero(t, s.Address().Port())
	assert.True(t, s.Stats().Running)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Start(context.Background()), ErrServerClosed)
}

func TestServer_RunStopsOnQuit(t *testing.T) {
	s := newTestServer(t, time.Second)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	require.Eventually(t, func() bool { return s.Stats().Running }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.console.Execute("quit"))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestServer_ListenerFailure(t *testing.T) {
	s := newTestServer(t, time.Second)
	s.config.Family = "ipx"
	assert.ErrorIs(t, s.Start(context.Background()), ErrListenerFailed)
	assert.False(t, s.Stats().Running)
}

func TestHTTPServer_Endpoints(t *testing.T) {
	s := startTestServer(t, 5*time.Second)
	base := "http://" + s.MetricsAddr()

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "zeusnet_transport_datagrams_received_total")

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	var stats Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	_ = resp.Body.Close()
	assert.True(t, stats.Running)
	require.Len(t, stats.Games, 1)
	assert.Equal(t, "Arena", stats.Games[0].Name)

	resp, err = http.Get(base + "/nope")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConsole_Execute(t *testing.T) {
	s := newTestServer(t, time.Second)
	var out bytes.Buffer
	c := NewConsole(s, &out)

	require.NoError(t, c.Execute(""))
	require.NoError(t, c.Execute("help"))
	assert.Contains(t, out.String(), "instances <game>")

	out.Reset()
	require.NoError(t, c.Execute("games"))
	assert.Contains(t, out.String(), "Arena instances=0 players=0 waiting=0")

	assert.ErrorIs(t, c.Execute("add Arena"), game.ErrGameExists)
	assert.ErrorIs(t, c.Execute("update Nope"), game.ErrGameNotFound)
	require.NoError(t, c.Execute("update Arena"))
	require.NoError(t, c.Execute("instances Arena"))
	require.NoError(t, c.Execute("clients"))

	err := c.Execute("add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: add <game>")
	assert.ErrorIs(t, c.Execute("dance"), ErrUnknownCommand)

	require.NoError(t, c.Execute("remove Arena"))
	assert.Empty(t, s.Games().ListGames())

	require.NoError(t, c.Execute("quit"))
	select {
	case <-s.quit:
	default:
		t.Fatal("quit did not request a stop")
	}
	// a second quit is harmless
	require.NoError(t, c.Execute("quit"))
}

func TestConsole_Run(t *testing.T) {
	s := newTestServer(t, time.Second)
	var out bytes.Buffer
	c := NewConsole(s, &out)

	c.Run(context.Background(), bytes.NewBufferString("games\nbogus\n"))
	assert.Contains(t, out.String(), "Arena instances=0")
	assert.Contains(t, out.String(), "error: unknown console command: bogus")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: 0.0.0.0
port: 9000
family: ipv6
multiplexer: poll
pollTimeout: 50ms
clientTimeout: 2s
console: true
`), 0o644))
	t.Setenv(EnvGameDir, "/srv/games")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, uint16(9000), cfg.Port)
	assert.Equal(t, "ipv6", cfg.Family)
	assert.Equal(t, network.MultiplexerPoll, cfg.Multiplexer)
	assert.Equal(t, 50*time.Millisecond, cfg.PollTimeout)
	assert.Equal(t, 2*time.Second, cfg.ClientTimeout)
	assert.Equal(t, "/srv/games", cfg.GameDir)
	assert.True(t, cfg.Console)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().BatchSize, cfg.BatchSize)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Family = "ipx"
	cfg.BatchSize = 0
	cfg.ClientTimeout = 0
	cfg.GameDir = ""
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, game.ErrNoGameDir)
	assert.Contains(t, err.Error(), "batchSize 0 is below 1")
	assert.Contains(t, err.Error(), "clientTimeout")
}
