package network

import (
	"errors"
	"fmt"
)

var (
	ErrProtocolMisuse     = errors.New("operation not supported by this transport")
	ErrSocketClosed       = errors.New("socket is closed")
	ErrNotBound           = errors.New("socket has no local address")
	ErrNotConnected       = errors.New("socket has no peer address")
	ErrFamilyMismatch     = errors.New("address family does not match socket")
	ErrResolve            = errors.New("cannot resolve address")
	ErrUnknownMultiplexer = errors.New("unknown multiplexer kind")
	ErrAlreadyRegistered  = errors.New("descriptor already registered")
	ErrNotRegistered      = errors.New("descriptor not registered")
	ErrUnsupportedAddress = errors.New("unsupported socket address")
)

// TransportError reports a failed socket operation together with the OS error.
type TransportError struct {
	Op      string
	Address *Address
	Err     error
}

func (e *TransportError) Error() string {
	if e.Address != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Address, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SendError is returned when a datagram was not written in full. Partial
// writes are not retried.
type SendError struct {
	To      *Address
	Written int
	Size    int
	Err     error
}

func (e *SendError) Error() string {
	msg := fmt.Sprintf("send %d/%d bytes", e.Written, e.Size)
	if e.To != nil {
		msg += " to " + e.To.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SendError) Unwrap() error {
	return e.Err
}
