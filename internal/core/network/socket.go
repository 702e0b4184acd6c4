//go:build unix

package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"

	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/pkg/generic"
	"go.uber.org/multierr"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

const (
	// ReceiveBufferSize fits the largest UDP payload.
	ReceiveBufferSize = 65536

	defaultBacklog = 128
)

var receiveBuffers = generic.NewBufferPool(ReceiveBufferSize, 4)

// Datagram is one received message and its sender.
type Datagram struct {
	From *Address
	Data []byte
}

// batchConn is satisfied by both ipv4.PacketConn and ipv6.PacketConn; their
// Message types are the same type.
type batchConn interface {
	ReadBatch(ms []ipv4.Message, flags int) (int, error)
	Close() error
}

// Socket owns one OS descriptor. It is non-blocking unless SetBlocking(true)
// was called. Receive calls are meant for a single goroutine; sends may come
// from any goroutine.
type Socket struct {
	fd       int
	address  *Address
	local    *Address
	blocking bool
	closed   atomic.Bool

	batchOnce sync.Once
	batch     batchConn
	batchErr  error

	logger log.Log
}

// Create resolves host and opens a socket for it.
func Create(ctx context.Context, host string, port uint16, family IPFamily, kind TransportKind) (*Socket, error) {
	addr, err := ResolveAddress(ctx, host, port, family, kind)
	if err != nil {
		return nil, err
	}
	return Open(addr, log.Provide())
}

// Open creates a non-blocking descriptor for address. The address is used
// by Bind and Connect.
func Open(address *Address, logger log.Log) (*Socket, error) {
	if address == nil {
		panic("network: Open called with nil address")
	}

	fd, err := unix.Socket(domainOf(address.Family()), typeOf(address.Kind()), 0)
	if err != nil {
		return nil, &TransportError{Op: "socket", Address: address, Err: err}
	}
	unix.CloseOnExec(fd)

	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, &TransportError{Op: "socket", Address: address, Err: err}
	}

	if logger == nil {
		logger = log.Nop()
	}

	return &Socket{
		fd:      fd,
		address: address,
		logger: logger.With(
			log.String("component", "socket"),
			log.Stringer("transport", address.Kind()),
		),
	}, nil
}

func newAccepted(fd int, local, peer *Address, logger log.Log) *Socket {
	return &Socket{
		fd:      fd,
		address: peer,
		local:   local,
		logger:  logger,
	}
}

func (s *Socket) Fd() int {
	return s.fd
}

// Address is the address the socket was opened with.
func (s *Socket) Address() *Address {
	return s.address
}

// LocalAddress is known after Bind, or after Connect for kernels that
// assign an ephemeral port.
func (s *Socket) LocalAddress() *Address {
	if s.local != nil {
		return s.local
	}
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return nil
	}
	if ap, ok := fromSockaddr(sa); ok {
		s.local = AddressFrom(ap, s.address.Kind())
	}
	return s.local
}

func (s *Socket) Kind() TransportKind {
	return s.address.Kind()
}

func (s *Socket) Bind() error {
	if s.closed.Load() {
		return ErrSocketClosed
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return &TransportError{Op: "setsockopt", Address: s.address, Err: err}
	}
	sa, err := s.toSockaddr(s.address)
	if err != nil {
		return err
	}
	if err = unix.Bind(s.fd, sa); err != nil {
		return &TransportError{Op: "bind", Address: s.address, Err: err}
	}
	s.local = nil
	s.LocalAddress()
	return nil
}

// Connect switches to blocking mode for the duration of the call.
func (s *Socket) Connect() error {
	if s.closed.Load() {
		return ErrSocketClosed
	}
	sa, err := s.toSockaddr(s.address)
	if err != nil {
		return err
	}

	wasBlocking := s.blocking
	if err = s.SetBlocking(true); err != nil {
		return err
	}
	defer func() { _ = s.SetBlocking(wasBlocking) }()

	if err = unix.Connect(s.fd, sa); err != nil {
		return &TransportError{Op: "connect", Address: s.address, Err: err}
	}
	return nil
}

// Listen is only meaningful for TCP. On UDP it logs and does nothing.
func (s *Socket) Listen(backlog int) error {
	if s.Kind() != TCP {
		s.logger.Warn("listen ignored on datagram socket", log.Stringer("address", s.address))
		return fmt.Errorf("listen: %w", ErrProtocolMisuse)
	}
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	if err := unix.Listen(s.fd, backlog); err != nil {
		return &TransportError{Op: "listen", Address: s.address, Err: err}
	}
	return nil
}

// Accept returns nil, nil when no connection is pending.
func (s *Socket) Accept() (*Socket, error) {
	if s.Kind() != TCP {
		return nil, fmt.Errorf("accept: %w", ErrProtocolMisuse)
	}
	nfd, sa, err := unix.Accept(s.fd)
	if err != nil {
		if wouldBlock(err) {
			return nil, nil
		}
		return nil, &TransportError{Op: "accept", Address: s.address, Err: err}
	}
	unix.CloseOnExec(nfd)
	if err = unix.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return nil, &TransportError{Op: "accept", Address: s.address, Err: err}
	}

	peer, err := peerAddress(sa, TCP)
	if err != nil {
		_ = unix.Close(nfd)
		return nil, &TransportError{Op: "accept", Address: s.address, Err: err}
	}
	return newAccepted(nfd, s.LocalAddress(), peer, s.logger), nil
}

func peerAddress(sa unix.Sockaddr, kind TransportKind) (*Address, error) {
	ap, ok := fromSockaddr(sa)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedAddress, sa)
	}
	return AddressFrom(ap, kind), nil
}

func (s *Socket) SetBlocking(blocking bool) error {
	if err := unix.SetNonblock(s.fd, !blocking); err != nil {
		return &TransportError{Op: "fcntl", Address: s.address, Err: err}
	}
	s.blocking = blocking
	return nil
}

func (s *Socket) Blocking() bool {
	return s.blocking
}

// Send writes data to the connected peer.
func (s *Socket) Send(data []byte) error {
	if s.closed.Load() {
		return ErrSocketClosed
	}
	n, err := unix.Write(s.fd, data)
	if err != nil {
		return &SendError{To: s.address, Size: len(data), Err: err}
	}
	if n != len(data) {
		return &SendError{To: s.address, Written: n, Size: len(data)}
	}
	return nil
}

// SendTo writes one datagram to addr.
func (s *Socket) SendTo(data []byte, addr *Address) error {
	if s.closed.Load() {
		return ErrSocketClosed
	}
	sa, err := s.toSockaddr(addr)
	if err != nil {
		return &SendError{To: addr, Size: len(data), Err: err}
	}
	if err = unix.Sendto(s.fd, data, 0, sa); err != nil {
		return &SendError{To: addr, Size: len(data), Err: err}
	}
	return nil
}

// Receive reads from the connected peer. It returns nil, nil on would-block.
func (s *Socket) Receive() ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrSocketClosed
	}
	buf := receiveBuffers.Get()
	defer receiveBuffers.Put(buf)

	n, err := unix.Read(s.fd, buf.B)
	if err != nil {
		if wouldBlock(err) {
			return nil, nil
		}
		return nil, &TransportError{Op: "read", Address: s.address, Err: err}
	}
	return append([]byte(nil), buf.B[:n]...), nil
}

// ReceiveFrom reads one datagram. It returns nil, nil on would-block.
func (s *Socket) ReceiveFrom() (*Datagram, error) {
	if s.closed.Load() {
		return nil, ErrSocketClosed
	}
	buf := receiveBuffers.Get()
	defer receiveBuffers.Put(buf)

	n, sa, err := unix.Recvfrom(s.fd, buf.B, 0)
	if err != nil {
		if wouldBlock(err) {
			return nil, nil
		}
		return nil, &TransportError{Op: "recvfrom", Address: s.address, Err: err}
	}

	from := s.address
	if ap, ok := fromSockaddr(sa); ok {
		from = AddressFrom(ap, s.Kind())
	}
	return &Datagram{From: from, Data: append([]byte(nil), buf.B[:n]...)}, nil
}

// ReceiveBatch drains up to max pending datagrams, oldest first. On Linux
// this is a single recvmmsg call; elsewhere it reads one datagram at a time
// until nothing is left. Would-block ends the batch without an error.
func (s *Socket) ReceiveBatch(max int) ([]Datagram, error) {
	if max <= 0 {
		return nil, nil
	}
	if s.closed.Load() {
		return nil, ErrSocketClosed
	}
	if s.Kind() != UDP {
		return nil, fmt.Errorf("receive batch: %w", ErrProtocolMisuse)
	}

	conn, err := s.batchReader()
	if err != nil {
		return s.receiveLoop(max)
	}

	buffers := make([]*generic.Buffer, max)
	messages := make([]ipv4.Message, max)
	for i := range messages {
		buffers[i] = receiveBuffers.Get()
		messages[i].Buffers = [][]byte{buffers[i].B}
	}
	defer func() {
		for _, b := range buffers {
			receiveBuffers.Put(b)
		}
	}()

	out := make([]Datagram, 0, max)
	for len(out) < max {
		base := len(out)
		n, err := conn.ReadBatch(messages[base:], unix.MSG_DONTWAIT)
		if err != nil {
			if wouldBlock(err) {
				break
			}
			return out, &TransportError{Op: "recvmmsg", Address: s.address, Err: err}
		}
		if n <= 0 {
			break
		}

		for _, m := range messages[base : base+n] {
			out = append(out, Datagram{
				From: s.fromNet(m.Addr),
				Data: append([]byte(nil), m.Buffers[0][:m.N]...),
			})
		}

		// A short native batch means the queue is empty.
		if nativeBatch && n < max-base {
			break
		}
	}

	return out, nil
}

func (s *Socket) receiveLoop(max int) ([]Datagram, error) {
	out := make([]Datagram, 0, max)
	for len(out) < max {
		d, err := s.ReceiveFrom()
		if err != nil {
			return out, err
		}
		if d == nil {
			break
		}
		out = append(out, *d)
	}
	return out, nil
}

// batchReader wraps a duplicate of the descriptor in a net.PacketConn so the
// x/net batch API can be used. The duplicate shares the kernel socket.
func (s *Socket) batchReader() (batchConn, error) {
	s.batchOnce.Do(func() {
		dup, err := unix.Dup(s.fd)
		if err != nil {
			s.batchErr = err
			return
		}
		f := os.NewFile(uintptr(dup), "udp-batch")
		pc, err := net.FilePacketConn(f)
		_ = f.Close()
		if err != nil {
			s.batchErr = err
			return
		}
		if s.address.Family() == IPv6 {
			s.batch = ipv6.NewPacketConn(pc)
		} else {
			s.batch = ipv4.NewPacketConn(pc)
		}
	})
	if s.batchErr != nil {
		s.logger.Debug("batch receive unavailable, using single reads", log.Error(s.batchErr))
	}
	return s.batch, s.batchErr
}

func (s *Socket) fromNet(addr net.Addr) *Address {
	if addr == nil {
		return s.address
	}
	a, err := AddressFromNet(addr)
	if err != nil {
		return s.address
	}
	return a
}

// Close releases the descriptor. Closing twice is a no-op.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if s.batch != nil {
		err = multierr.Append(err, s.batch.Close())
	}
	if closeErr := unix.Close(s.fd); closeErr != nil {
		err = multierr.Append(err, &TransportError{Op: "close", Address: s.address, Err: closeErr})
	}
	return err
}

func (s *Socket) toSockaddr(addr *Address) (unix.Sockaddr, error) {
	if addr == nil {
		return nil, ErrNotConnected
	}
	ip := addr.AddrPort().Addr()
	port := int(addr.Port())

	if s.address.Family() == IPv6 {
		return &unix.SockaddrInet6{Port: port, Addr: ip.As16()}, nil
	}
	ip = ip.Unmap()
	if !ip.Is4() {
		return nil, fmt.Errorf("%w: %s on ipv4 socket", ErrFamilyMismatch, addr)
	}
	return &unix.SockaddrInet4{Port: port, Addr: ip.As4()}, nil
}

func fromSockaddr(sa unix.Sockaddr) (netip.AddrPort, bool) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)), true
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)), true
	default:
		return netip.AddrPort{}, false
	}
}

func domainOf(f IPFamily) int {
	if f == IPv6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

func typeOf(k TransportKind) int {
	if k == TCP {
		return unix.SOCK_STREAM
	}
	return unix.SOCK_DGRAM
}

func wouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
