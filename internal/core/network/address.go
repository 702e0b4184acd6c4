package network

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

type IPFamily uint8

const (
	IPv4 IPFamily = iota
	IPv6
)

func (f IPFamily) String() string {
	if f == IPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// ParseIPFamily accepts "ipv4", "ipv6", "4" and "6".
func ParseIPFamily(s string) (IPFamily, error) {
	switch s {
	case "", "ipv4", "4", "v4":
		return IPv4, nil
	case "ipv6", "6", "v6":
		return IPv6, nil
	default:
		return IPv4, fmt.Errorf("unknown ip family %q", s)
	}
}

type TransportKind uint8

const (
	UDP TransportKind = iota
	TCP
)

func (k TransportKind) String() string {
	if k == TCP {
		return "tcp"
	}
	return "udp"
}

// Address is an immutable resolved endpoint. Two addresses are equal when
// their resolved bytes are equal, whatever text they were built from.
type Address struct {
	family IPFamily
	kind   TransportKind
	addr   netip.AddrPort
}

// AddressKey is a comparable form of Address for map keys.
type AddressKey struct {
	Kind TransportKind
	Addr netip.AddrPort
}

// ResolveAddress resolves host for the given family. An empty host means
// the unspecified address.
func ResolveAddress(ctx context.Context, host string, port uint16, family IPFamily, kind TransportKind) (*Address, error) {
	var ip netip.Addr
	switch {
	case host == "" && family == IPv6:
		ip = netip.IPv6Unspecified()
	case host == "":
		ip = netip.IPv4Unspecified()
	default:
		if parsed, err := netip.ParseAddr(host); err == nil {
			ip = parsed
			break
		}
		network := "ip4"
		if family == IPv6 {
			network = "ip6"
		}
		ips, err := net.DefaultResolver.LookupNetIP(ctx, network, host)
		if err != nil {
			return nil, &TransportError{Op: "resolve", Err: fmt.Errorf("%w %q: %w", ErrResolve, host, err)}
		}
		if len(ips) == 0 {
			return nil, &TransportError{Op: "resolve", Err: fmt.Errorf("%w %q", ErrResolve, host)}
		}
		ip = ips[0]
	}

	return newAddress(netip.AddrPortFrom(ip, port), family, kind)
}

// AddressFrom wraps an already resolved endpoint.
func AddressFrom(ap netip.AddrPort, kind TransportKind) *Address {
	family := IPv4
	if ap.Addr().Is6() && !ap.Addr().Is4In6() {
		family = IPv6
	}
	a, _ := newAddress(ap, family, kind)
	return a
}

// AddressFromNet converts a net.Addr reported by the runtime.
func AddressFromNet(addr net.Addr) (*Address, error) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return AddressFrom(a.AddrPort(), UDP), nil
	case *net.TCPAddr:
		return AddressFrom(a.AddrPort(), TCP), nil
	default:
		return nil, fmt.Errorf("unsupported address type %T", addr)
	}
}

func newAddress(ap netip.AddrPort, family IPFamily, kind TransportKind) (*Address, error) {
	ip := ap.Addr()
	switch family {
	case IPv4:
		ip = ip.Unmap()
		if !ip.Is4() {
			return nil, &TransportError{Op: "resolve", Err: fmt.Errorf("%w: %s is not ipv4", ErrFamilyMismatch, ip)}
		}
	case IPv6:
		if ip.Is4() {
			ip = netip.AddrFrom16(ip.As16())
		}
	}
	return &Address{
		family: family,
		kind:   kind,
		addr:   netip.AddrPortFrom(ip, ap.Port()),
	}, nil
}

func (a *Address) Family() IPFamily         { return a.family }
func (a *Address) Kind() TransportKind      { return a.kind }
func (a *Address) AddrPort() netip.AddrPort { return a.addr }
func (a *Address) Port() uint16             { return a.addr.Port() }

func (a *Address) Key() AddressKey {
	return AddressKey{Kind: a.kind, Addr: a.addr}
}

// Bytes returns the 16-byte address followed by the big endian port.
func (a *Address) Bytes() [18]byte {
	var out [18]byte
	ip := a.addr.Addr().As16()
	copy(out[:16], ip[:])
	out[16] = byte(a.addr.Port() >> 8)
	out[17] = byte(a.addr.Port())
	return out
}

func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Key() == other.Key()
}

func (a *Address) String() string {
	if a == nil {
		return "<nil>"
	}
	return a.addr.String()
}

// HostPort is the "host:port" form used by net.Dial and friends.
func (a *Address) HostPort() string {
	return net.JoinHostPort(a.addr.Addr().String(), strconv.Itoa(int(a.addr.Port())))
}
