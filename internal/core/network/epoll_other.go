//go:build unix && !linux

package network

import "time"

func newEpoll(time.Duration) (Multiplexer, error) {
	return nil, ErrUnknownMultiplexer
}
