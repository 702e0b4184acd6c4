package game

import (
	"errors"
	"fmt"

	"github.com/zeusync/zeusnet/internal/core/protocol"
)

var (
	ErrNoGameDir      = errors.New("game directory is not set")
	ErrGameNotFound   = errors.New("game not found")
	ErrGameExists     = errors.New("game already loaded")
	ErrAlreadyPlaying = errors.New("client is already in this game")
	ErrClientGone     = errors.New("client is not connected")
	ErrNoScenes       = errors.New("game has no scenes")

	// ErrInstanceFull is returned by Game.AddPlayer; the manager queues the
	// client instead of reporting it.
	ErrInstanceFull = fmt.Errorf("%w: instance is full", protocol.ErrCapacity)
)
