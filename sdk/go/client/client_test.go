package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/protocol"
)

// fakeServer reads raw datagrams from one UDP socket.
type fakeServer struct {
	t    *testing.T
	conn *net.UDPConn
	peer *net.UDPAddr
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &fakeServer{t: t, conn: conn}
}

func (s *fakeServer) port() uint16 {
	return uint16(s.conn.LocalAddr().(*net.UDPAddr).Port)
}

// expect skips packets until one carries cmd.
func (s *fakeServer) expect(cmd protocol.CommandID) protocol.Packet {
	s.t.Helper()
	buf := make([]byte, 64*1024)
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		require.NoError(s.t, err, "waiting for %s", cmd)
		s.peer = from
		packets, err := protocol.DecodeDatagram(buf[:n])
		require.NoError(s.t, err)
		for _, p := range packets {
			if p.Header.Command == cmd {
				return p
			}
		}
	}
}

func (s *fakeServer) send(packets ...*protocol.Packet) {
	s.t.Helper()
	var data []byte
	for _, p := range packets {
		var err error
		data, err = p.AppendTo(data)
		require.NoError(s.t, err)
	}
	_, err := s.conn.WriteToUDP(data, s.peer)
	require.NoError(s.t, err)
}

func newTestClient(t *testing.T, srv *fakeServer, keepAlive time.Duration) *Client {
	t.Helper()
	config := DefaultConfig()
	config.Game = "Arena"
	config.Name = "alice"
	config.Port = srv.port()
	config.KeepAliveInterval = keepAlive
	c := New(config, log.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func welcomePacket(t *testing.T) *protocol.Packet {
	t.Helper()
	p := protocol.NewPacket(protocol.RepConnect)
	p.WriteUint64(7)
	for _, s := range []string{"Level", "alice", "Player"} {
		require.NoError(t, p.WriteString(s))
	}
	return p
}

func TestClient_Connect(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(t, srv, time.Second)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)
	assert.NotNil(t, c.LocalAddress())

	req := srv.expect(protocol.ReqConnect)
	r := req.Reader()
	game, err := r.ReadString()
	require.NoError(t, err)
	name, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "Arena", game)
	assert.Equal(t, "alice", name)

	handled := make(chan protocol.Packet, 1)
	c.OnPacket(protocol.ReqEntitySpawn, func(p protocol.Packet) { handled <- p })

	srv.send(welcomePacket(t), protocol.NewPacket(protocol.ReqEntitySpawn))

	require.Eventually(t, func() bool {
		_, ok := c.Welcome()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	w, _ := c.Welcome()
	assert.Equal(t, Welcome{Entity: 7, Scene: "Level", Name: "alice", Template: "Player"}, w)

	select {
	case p := <-handled:
		assert.Equal(t, protocol.ReqEntitySpawn, p.Header.Command)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}

	first, ok := c.NextPacket()
	require.True(t, ok)
	assert.Equal(t, protocol.RepConnect, first.Header.Command)
	second, ok := c.NextPacket()
	require.True(t, ok)
	assert.Equal(t, protocol.ReqEntitySpawn, second.Header.Command)
	_, ok = c.NextPacket()
	assert.False(t, ok)
}

func TestClient_SendsHeartbeatOnIdle(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(t, srv, 20*time.Millisecond)

	require.NoError(t, c.Connect(context.Background()))
	srv.expect(protocol.ReqConnect)
	srv.expect(protocol.ReqHeartbeat)
}

func TestClient_SendUserUpdates(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(t, srv, time.Second)

	assert.ErrorIs(t, c.SendUserUpdates(protocol.UserUpdates{
		Events: []protocol.Event{{ID: protocol.EventShoot, State: protocol.EventPressed}},
	}), ErrNotConnected)

	require.NoError(t, c.Connect(context.Background()))
	srv.expect(protocol.ReqConnect)

	// empty updates are not sent
	require.NoError(t, c.SendUserUpdates(protocol.UserUpdates{}))
	require.NoError(t, c.SendUserUpdates(protocol.UserUpdates{
		Events: []protocol.Event{{ID: protocol.EventMoveUp, State: protocol.EventPressed}},
		Axes:   []protocol.Axis{{ID: protocol.EventLookLeft, Value: 0.5}},
	}))

	p := srv.expect(protocol.ReqUserUpdates)
	assert.Equal(t, protocol.PriorityHigh, p.Header.Priority)
	u, err := protocol.ReadUserUpdates(p.Reader())
	require.NoError(t, err)
	assert.Equal(t, []protocol.Event{{ID: protocol.EventMoveUp, State: protocol.EventPressed}}, u.Events)
	assert.Equal(t, []protocol.Axis{{ID: protocol.EventLookLeft, Value: 0.5}}, u.Axes)
}

func TestClient_Disconnect(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(t, srv, 50*time.Millisecond)

	assert.ErrorIs(t, c.Disconnect(), ErrNotConnected)
	require.NoError(t, c.Connect(context.Background()))
	srv.expect(protocol.ReqConnect)

	require.NoError(t, c.Disconnect())
	srv.expect(protocol.ReqDisconnect)
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.SendPacket(protocol.NewPacket(protocol.ReqHeartbeat)), ErrNotConnected)

	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)
}

func TestClient_InvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.BatchSize = 0
	c := New(config, log.Nop())

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "game is empty")
	assert.False(t, c.IsConnected())
}

func TestReadWelcome(t *testing.T) {
	w, err := ReadWelcome(*welcomePacket(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), w.Entity)

	_, err = ReadWelcome(*protocol.NewPacket(protocol.RepHeartbeat))
	assert.ErrorIs(t, err, ErrInvalidWelcome)

	truncated := protocol.NewPacket(protocol.RepConnect)
	truncated.WriteUint64(1)
	_, err = ReadWelcome(*truncated)
	assert.ErrorIs(t, err, ErrInvalidWelcome)
}
