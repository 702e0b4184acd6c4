package network

import (
	"iter"
	"slices"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// EpollMultiplexer is the Linux implementation. Registration is O(1) and
// Wait only reports descriptors that fired.
type EpollMultiplexer struct {
	epfd    int
	mu      sync.Mutex
	fds     map[int]struct{}
	events  []unix.EpollEvent
	ready   map[int]bool
	timeout time.Duration
}

func newEpoll(timeout time.Duration) (Multiplexer, error) {
	return NewEpollMultiplexer(timeout)
}

func NewEpollMultiplexer(timeout time.Duration) (*EpollMultiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &TransportError{Op: "epoll_create1", Err: err}
	}
	return &EpollMultiplexer{
		epfd:    epfd,
		fds:     make(map[int]struct{}),
		events:  make([]unix.EpollEvent, 64),
		ready:   make(map[int]bool),
		timeout: timeout,
	}, nil
}

func (e *EpollMultiplexer) Add(fd int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.fds[fd]; ok {
		return ErrAlreadyRegistered
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return &TransportError{Op: "epoll_ctl", Err: err}
	}
	e.fds[fd] = struct{}{}
	return nil
}

func (e *EpollMultiplexer) Remove(fd int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.fds[fd]; !ok {
		return ErrNotRegistered
	}
	delete(e.fds, fd)
	delete(e.ready, fd)
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return &TransportError{Op: "epoll_ctl", Err: err}
	}
	return nil
}

func (e *EpollMultiplexer) Wait() (int, error) {
	n, err := unix.EpollWait(e.epfd, e.events, timeoutMillis(e.timeout))

	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.ready)
	if err != nil {
		return -1, err
	}
	for _, ev := range e.events[:n] {
		if _, ok := e.fds[int(ev.Fd)]; ok {
			e.ready[int(ev.Fd)] = true
		}
	}
	return n, nil
}

func (e *EpollMultiplexer) IsRestartable(err error) bool {
	return isRestartable(err)
}

func (e *EpollMultiplexer) IsReady(fd int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready[fd]
}

func (e *EpollMultiplexer) Descriptors() iter.Seq[int] {
	e.mu.Lock()
	fds := sortedKeys(e.fds)
	e.mu.Unlock()
	return slices.Values(fds)
}

func (e *EpollMultiplexer) Timeout() time.Duration {
	return e.timeout
}

func (e *EpollMultiplexer) Close() error {
	return unix.Close(e.epfd)
}
