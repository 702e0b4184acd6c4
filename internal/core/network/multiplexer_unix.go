//go:build unix

package network

import (
	"errors"
	"iter"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// NewMultiplexer builds the requested implementation. Auto prefers epoll
// where the kernel has it.
func NewMultiplexer(kind MultiplexerKind, timeout time.Duration) (Multiplexer, error) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	switch kind {
	case MultiplexerPoll:
		return NewPollMultiplexer(timeout), nil
	case MultiplexerEpoll:
		return newEpoll(timeout)
	case MultiplexerAuto, "":
		if m, err := newEpoll(timeout); err == nil {
			return m, nil
		}
		return NewPollMultiplexer(timeout), nil
	default:
		return nil, ErrUnknownMultiplexer
	}
}

func isRestartable(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}

// PollMultiplexer is the portable poll(2) implementation.
type PollMultiplexer struct {
	mu      sync.Mutex
	fds     []unix.PollFd
	ready   map[int]bool
	timeout time.Duration
}

func NewPollMultiplexer(timeout time.Duration) *PollMultiplexer {
	return &PollMultiplexer{
		ready:   make(map[int]bool),
		timeout: timeout,
	}
}

func (p *PollMultiplexer) Add(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pfd := range p.fds {
		if int(pfd.Fd) == fd {
			return ErrAlreadyRegistered
		}
	}
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	return nil
}

func (p *PollMultiplexer) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pfd := range p.fds {
		if int(pfd.Fd) == fd {
			p.fds = slices.Delete(p.fds, i, i+1)
			delete(p.ready, fd)
			return nil
		}
	}
	return ErrNotRegistered
}

func (p *PollMultiplexer) Wait() (int, error) {
	p.mu.Lock()
	fds := slices.Clone(p.fds)
	p.mu.Unlock()

	n, err := unix.Poll(fds, timeoutMillis(p.timeout))

	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.ready)
	if err != nil {
		return -1, err
	}
	for _, pfd := range fds {
		if pfd.Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 {
			p.ready[int(pfd.Fd)] = true
		}
	}
	return n, nil
}

func (p *PollMultiplexer) IsRestartable(err error) bool {
	return isRestartable(err)
}

func (p *PollMultiplexer) IsReady(fd int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready[fd]
}

func (p *PollMultiplexer) Descriptors() iter.Seq[int] {
	p.mu.Lock()
	fds := make([]int, len(p.fds))
	for i, pfd := range p.fds {
		fds[i] = int(pfd.Fd)
	}
	p.mu.Unlock()
	return slices.Values(fds)
}

func (p *PollMultiplexer) Timeout() time.Duration {
	return p.timeout
}

func (p *PollMultiplexer) Close() error {
	return nil
}

func sortedKeys(m map[int]struct{}) []int {
	return slices.Sorted(maps.Keys(m))
}
