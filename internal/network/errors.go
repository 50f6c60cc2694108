package network

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyDialing = errors.New("already dialing peer")
	ErrClientClosed   = errors.New("client closed")
	ErrLoopStopped    = errors.New("event loop stopped")
	ErrSwarmClosed    = errors.New("swarm event stream closed")

	// ErrInvariant marks a completion that matches no pending operation. The
	// event loop cannot continue past one.
	ErrInvariant = errors.New("internal consistency violation")

	ErrUnknownQuery   = fmt.Errorf("%w: unknown query", ErrInvariant)
	ErrUnknownRequest = fmt.Errorf("%w: unknown request", ErrInvariant)
	ErrUnknownDial    = fmt.Errorf("%w: unknown dial", ErrInvariant)
)
