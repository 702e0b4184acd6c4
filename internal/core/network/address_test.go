package network

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAddress_ComparesResolvedBytes(t *testing.T) {
	ctx := context.Background()

	a, err := ResolveAddress(ctx, "127.0.0.1", 4242, IPv4, UDP)
	require.NoError(t, err)
	b, err := ResolveAddress(ctx, "::ffff:127.0.0.1", 4242, IPv4, UDP)
	require.NoError(t, err)
	c, err := ResolveAddress(ctx, "127.0.0.1", 4243, IPv4, UDP)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c))
	assert.Equal(t, "127.0.0.1:4242", a.String())
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestResolveAddress_Unspecified(t *testing.T) {
	a, err := ResolveAddress(context.Background(), "", 0, IPv6, UDP)
	require.NoError(t, err)
	assert.Equal(t, IPv6, a.Family())
	assert.True(t, a.AddrPort().Addr().IsUnspecified())
}

func TestResolveAddress_FamilyMismatch(t *testing.T) {
	_, err := ResolveAddress(context.Background(), "::1", 1, IPv4, UDP)
	assert.ErrorIs(t, err, ErrFamilyMismatch)

	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestAddressFromNet(t *testing.T) {
	a, err := AddressFromNet(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 9000})
	require.NoError(t, err)
	assert.Equal(t, IPv4, a.Family())
	assert.Equal(t, UDP, a.Kind())
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.1:9000"), a.AddrPort())

	_, err = AddressFromNet(&net.UnixAddr{Name: "/tmp/x"})
	assert.Error(t, err)
}

func TestAddress_EqualNil(t *testing.T) {
	var a *Address
	assert.True(t, a.Equal(nil))
	assert.False(t, AddressFrom(netip.MustParseAddrPort("1.2.3.4:5"), UDP).Equal(nil))
	assert.Equal(t, "<nil>", a.String())
}

func TestParseKinds(t *testing.T) {
	f, err := ParseIPFamily("6")
	require.NoError(t, err)
	assert.Equal(t, IPv6, f)
	_, err = ParseIPFamily("ipx")
	assert.Error(t, err)

	k, err := ParseMultiplexerKind("")
	require.NoError(t, err)
	assert.Equal(t, MultiplexerAuto, k)
	_, err = ParseMultiplexerKind("select")
	assert.ErrorIs(t, err, ErrUnknownMultiplexer)
}
