// Package oneshot provides a single-use reply channel.
//
// A Sender delivers at most one value to its Receiver. Dropping a Sender
// without sending is observed by the Receiver as ErrBrokenPromise, so an
// abandoned waiter fails instead of hanging.
package oneshot

import (
	"context"
	"errors"
)

var (
	ErrAlreadySent   = errors.New("oneshot: reply already sent")
	ErrBrokenPromise = errors.New("oneshot: sender dropped without reply")
)

type result[T any] struct {
	value T
	err   error
}

// Sender is the write half. It is meant to have a single owner; it is not
// safe for concurrent use.
type Sender[T any] struct {
	ch chan result[T]
}

// Receiver is the read half.
type Receiver[T any] struct {
	ch <-chan result[T]
}

func New[T any]() (*Sender[T], *Receiver[T]) {
	ch := make(chan result[T], 1)
	return &Sender[T]{ch: ch}, &Receiver[T]{ch: ch}
}

// Send delivers value and err and consumes the sender. The buffered channel
// means Send never blocks, even if the receiver has gone away.
func (s *Sender[T]) Send(value T, err error) error {
	if s.ch == nil {
		return ErrAlreadySent
	}
	s.ch <- result[T]{value: value, err: err}
	close(s.ch)
	s.ch = nil
	return nil
}

func (s *Sender[T]) Ok(value T) error {
	return s.Send(value, nil)
}

func (s *Sender[T]) Fail(err error) error {
	var zero T
	return s.Send(zero, err)
}

// Drop consumes the sender without a value. Dropping a consumed sender is a
// no-op.
func (s *Sender[T]) Drop() {
	if s.ch == nil {
		return
	}
	close(s.ch)
	s.ch = nil
}

func (s *Sender[T]) Consumed() bool {
	return s.ch == nil
}

// Recv waits for the value. It returns ErrBrokenPromise when the sender was
// dropped and ctx.Err() when ctx ends first. A value that is already
// delivered wins over a cancelled ctx.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	select {
	case res, ok := <-r.ch:
		return unwrap(res, ok)
	case <-ctx.Done():
		select {
		case res, ok := <-r.ch:
			return unwrap(res, ok)
		default:
		}
		var zero T
		return zero, ctx.Err()
	}
}

func unwrap[T any](res result[T], ok bool) (T, error) {
	if !ok {
		var zero T
		return zero, ErrBrokenPromise
	}
	return res.value, res.err
}
