//go:build unix

package network

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/zeusync/zeusnet/internal/core/observability/log"
)

func loopbackUDP(t *testing.T) *Socket {
	t.Helper()
	addr, err := ResolveAddress(context.Background(), "127.0.0.1", 0, IPv4, UDP)
	require.NoError(t, err)
	s, err := Open(addr, log.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Bind())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitReadable(t *testing.T, s *Socket) {
	t.Helper()
	m := NewPollMultiplexer(time.Second)
	require.NoError(t, m.Add(s.Fd()))
	n, err := m.Wait()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, m.IsReady(s.Fd()))
}

func TestSocket_SendToReceiveFrom(t *testing.T) {
	server := loopbackUDP(t)
	client := loopbackUDP(t)

	require.NotNil(t, server.LocalAddress())
	require.NotZero(t, server.LocalAddress().Port())

	require.NoError(t, client.SendTo([]byte("ping"), server.LocalAddress()))
	waitReadable(t, server)

	d, err := server.ReceiveFrom()
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, []byte("ping"), d.Data)
	assert.True(t, d.From.Equal(client.LocalAddress()))
}

func TestSocket_ReceiveWouldBlock(t *testing.T) {
	s := loopbackUDP(t)

	d, err := s.ReceiveFrom()
	assert.NoError(t, err)
	assert.Nil(t, d)

	batch, err := s.ReceiveBatch(8)
	assert.NoError(t, err)
	assert.Empty(t, batch)
}

func TestSocket_ReceiveBatchBound(t *testing.T) {
	server := loopbackUDP(t)
	client := loopbackUDP(t)

	const total = 10
	for i := 0; i < total; i++ {
		require.NoError(t, client.SendTo([]byte(fmt.Sprintf("msg-%d", i)), server.LocalAddress()))
	}
	waitReadable(t, server)

	var got []string
	for _, expected := range []int{4, 4, 2, 0} {
		batch, err := server.ReceiveBatch(4)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(batch), 4)
		assert.Len(t, batch, expected)
		for _, d := range batch {
			assert.True(t, d.From.Equal(client.LocalAddress()))
			got = append(got, string(d.Data))
		}
	}

	want := make([]string, total)
	for i := range want {
		want[i] = fmt.Sprintf("msg-%d", i)
	}
	assert.Equal(t, want, got)
}

func TestSocket_ConnectedSendReceive(t *testing.T) {
	server := loopbackUDP(t)

	client, err := Open(server.LocalAddress(), log.Nop())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Connect())
	assert.False(t, client.Blocking())

	require.NoError(t, client.Send([]byte("hello")))
	waitReadable(t, server)

	d, err := server.ReceiveFrom()
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NoError(t, server.SendTo([]byte("world"), d.From))

	waitReadable(t, client)
	data, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), data)
}

func TestSocket_ListenOnUDPIsMisuse(t *testing.T) {
	s := loopbackUDP(t)
	assert.ErrorIs(t, s.Listen(0), ErrProtocolMisuse)
	_, err := s.Accept()
	assert.ErrorIs(t, err, ErrProtocolMisuse)
}

func TestPeerAddress(t *testing.T) {
	peer, err := peerAddress(&unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}, Port: 9000}, TCP)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", peer.String())
	assert.Equal(t, TCP, peer.Kind())

	peer, err = peerAddress(&unix.SockaddrUnix{Name: "/tmp/zeusnet.sock"}, TCP)
	assert.ErrorIs(t, err, ErrUnsupportedAddress)
	assert.Nil(t, peer)
}

func TestSocket_TCPAccept(t *testing.T) {
	addr, err := ResolveAddress(context.Background(), "127.0.0.1", 0, IPv4, TCP)
	require.NoError(t, err)
	listener, err := Open(addr, log.Nop())
	require.NoError(t, err)
	defer listener.Close()
	require.NoError(t, listener.Bind())
	require.NoError(t, listener.Listen(0))

	conn, err := listener.Accept()
	require.NoError(t, err)
	assert.Nil(t, conn)

	dialer, err := Open(listener.LocalAddress(), log.Nop())
	require.NoError(t, err)
	defer dialer.Close()
	require.NoError(t, dialer.Connect())

	waitReadable(t, listener)
	conn, err = listener.Accept()
	require.NoError(t, err)
	require.NotNil(t, conn)
	defer conn.Close()
	require.NotNil(t, conn.Address())
	assert.Equal(t, dialer.LocalAddress().Key(), conn.Address().Key())

	require.NoError(t, dialer.Send([]byte("tcp")))
	waitReadable(t, conn)
	data, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("tcp"), data)
}

func TestSocket_SendToFamilyMismatch(t *testing.T) {
	s := loopbackUDP(t)
	v6, err := ResolveAddress(context.Background(), "::1", 9, IPv6, UDP)
	require.NoError(t, err)

	err = s.SendTo([]byte("x"), v6)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, ErrFamilyMismatch)
}

func TestSocket_ClosedOperations(t *testing.T) {
	s := loopbackUDP(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.SendTo([]byte("x"), s.Address()), ErrSocketClosed)
	_, err := s.ReceiveFrom()
	assert.ErrorIs(t, err, ErrSocketClosed)
}

func TestOpen_NilAddressPanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = Open(nil, log.Nop()) })
}

func TestMultiplexers(t *testing.T) {
	for _, kind := range []MultiplexerKind{MultiplexerPoll, MultiplexerAuto} {
		t.Run(string(kind), func(t *testing.T) {
			m, err := NewMultiplexer(kind, 20*time.Millisecond)
			require.NoError(t, err)
			defer m.Close()

			server := loopbackUDP(t)
			client := loopbackUDP(t)

			require.NoError(t, m.Add(server.Fd()))
			assert.ErrorIs(t, m.Add(server.Fd()), ErrAlreadyRegistered)
			assert.Equal(t, []int{server.Fd()}, slices.Collect(m.Descriptors()))

			n, err := m.Wait()
			require.NoError(t, err)
			assert.Equal(t, 0, n)
			assert.False(t, m.IsReady(server.Fd()))

			require.NoError(t, client.SendTo([]byte("x"), server.LocalAddress()))
			n, err = m.Wait()
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.True(t, m.IsReady(server.Fd()))

			require.NoError(t, m.Remove(server.Fd()))
			assert.ErrorIs(t, m.Remove(server.Fd()), ErrNotRegistered)
			assert.Empty(t, slices.Collect(m.Descriptors()))
			assert.Equal(t, 20*time.Millisecond, m.Timeout())
		})
	}
}
