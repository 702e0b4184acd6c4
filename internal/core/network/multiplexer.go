package network

import (
	"fmt"
	"iter"
	"time"
)

// DefaultWaitTimeout bounds every Wait call. A timeout doubles as the
// liveness check trigger.
const DefaultWaitTimeout = 100 * time.Millisecond

// Multiplexer waits for readability on a set of descriptors.
type Multiplexer interface {
	Add(fd int) error
	Remove(fd int) error

	// Wait blocks until a descriptor is readable, the timeout elapses or a
	// signal interrupts the call. It returns the number of ready
	// descriptors, 0 on timeout and -1 with an error.
	Wait() (int, error)

	// IsRestartable reports errors after which Wait can simply be called again.
	IsRestartable(err error) bool

	IsReady(fd int) bool
	Descriptors() iter.Seq[int]
	Timeout() time.Duration
	Close() error
}

type MultiplexerKind string

const (
	MultiplexerAuto  MultiplexerKind = "auto"
	MultiplexerPoll  MultiplexerKind = "poll"
	MultiplexerEpoll MultiplexerKind = "epoll"
)

func ParseMultiplexerKind(s string) (MultiplexerKind, error) {
	switch k := MultiplexerKind(s); k {
	case "":
		return MultiplexerAuto, nil
	case MultiplexerAuto, MultiplexerPoll, MultiplexerEpoll:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMultiplexer, s)
	}
}

func timeoutMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := int(d / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	return ms
}
