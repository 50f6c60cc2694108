package network

import (
	"context"
	"errors"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/oneshot"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/swarm"
)

// Client is safe for concurrent use. Calls from one goroutine reach the event
// loop in the order they were made.
type Client struct {
	commands chan<- command

	// stopped ends when the event loop exits.
	stopped context.Context

	mu     sync.RWMutex
	closed bool
}

func (c *Client) StartListening(ctx context.Context, addr ma.Multiaddr) error {
	_, err := call(ctx, c, func(reply *oneshot.Sender[struct{}]) command {
		return startListening{addr: addr, reply: reply}
	})
	return err
}

func (c *Client) Dial(ctx context.Context, p peer.ID, addr ma.Multiaddr) error {
	_, err := call(ctx, c, func(reply *oneshot.Sender[struct{}]) command {
		return dial{peer: p, addr: addr, reply: reply}
	})
	return err
}

// StartProviding advertises the local node as a provider of name.
func (c *Client) StartProviding(ctx context.Context, name string) error {
	_, err := call(ctx, c, func(reply *oneshot.Sender[struct{}]) command {
		return startProviding{name: name, reply: reply}
	})
	return err
}

// GetProviders returns the peers advertising name. An empty set is not an
// error.
func (c *Client) GetProviders(ctx context.Context, name string) (swarm.ProviderSet, error) {
	return call(ctx, c, func(reply *oneshot.Sender[swarm.ProviderSet]) command {
		return getProviders{name: name, reply: reply}
	})
}

func (c *Client) RequestFile(ctx context.Context, p peer.ID, name string) (string, error) {
	return call(ctx, c, func(reply *oneshot.Sender[string]) command {
		return requestFile{peer: p, name: name, reply: reply}
	})
}

func (c *Client) RespondFile(ctx context.Context, content string, ch *swarm.ResponseChannel) error {
	_, err := call(ctx, c, func(reply *oneshot.Sender[struct{}]) command {
		return respondFile{content: content, channel: ch, reply: reply}
	})
	return err
}

// Close closes the command queue. The event loop stops once it has drained
// the commands already queued.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	c.closed = true
	close(c.commands)
	return nil
}

func (c *Client) send(ctx context.Context, cmd command) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.commands <- cmd:
		return nil
	case <-c.stopped.Done():
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call enqueues the command built around a fresh reply handle and waits for
// the event loop to resolve it.
func call[T any](ctx context.Context, c *Client, build func(*oneshot.Sender[T]) command) (T, error) {
	var zero T

	reply, result := oneshot.New[T]()
	if err := c.send(ctx, build(reply)); err != nil {
		return zero, err
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.stopped, cancel)
	defer stop()

	v, err := result.Recv(waitCtx)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		// The loop exited with our command still queued.
		return zero, oneshot.ErrBrokenPromise
	}
	return v, err
}
