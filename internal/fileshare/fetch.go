// Package fileshare implements fetching a named file from whichever provider
// answers first and serving a local file to requesting peers.
package fileshare

import (
	"context"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/multierr"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/swarm"
)

var (
	ErrNoProvider         = errors.New("could not find provider for file")
	ErrAllProvidersFailed = errors.New("none of the providers returned file")
)

// Network is the part of network.Client that fetching needs.
type Network interface {
	GetProviders(ctx context.Context, name string) (swarm.ProviderSet, error)
	RequestFile(ctx context.Context, p peer.ID, name string) (string, error)
}

type Result struct {
	Name     string
	Provider peer.ID
	Content  string
}

// Attempt is the outcome of one request in the race.
type Attempt struct {
	Provider peer.ID
	Err      error
}

type fetchOptions struct {
	onProviders func(swarm.ProviderSet)
	onAttempt   func(Attempt)
}

type FetchOption func(*fetchOptions)

// OnProviders is called once with the provider set before the race starts.
func OnProviders(fn func(swarm.ProviderSet)) FetchOption {
	return func(o *fetchOptions) { o.onProviders = fn }
}

// OnAttempt is called for each attempt that finishes before the race is
// decided. Calls come from the goroutine running Fetch.
func OnAttempt(fn func(Attempt)) FetchOption {
	return func(o *fetchOptions) { o.onAttempt = fn }
}

// Fetch asks every provider of name for its content at once and returns the
// first successful answer. Slower answers are discarded.
func Fetch(ctx context.Context, n Network, name string, opts ...FetchOption) (Result, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	providers, err := n.GetProviders(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("finding providers for %s: %w", name, err)
	}
	if providers.Len() == 0 {
		return Result{}, fmt.Errorf("%w %s", ErrNoProvider, name)
	}
	if o.onProviders != nil {
		o.onProviders(providers)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		provider peer.ID
		content  string
		err      error
	}

	results := make(chan outcome, providers.Len())
	for _, p := range providers.Peers() {
		go func(p peer.ID) {
			content, err := n.RequestFile(raceCtx, p, name)
			results <- outcome{provider: p, content: content, err: err}
		}(p)
	}

	var errs error
	for range providers.Len() {
		select {
		case res := <-results:
			if o.onAttempt != nil {
				o.onAttempt(Attempt{Provider: res.provider, Err: res.err})
			}
			if res.err == nil {
				return Result{Name: name, Provider: res.provider, Content: res.content}, nil
			}
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", res.provider, res.err))
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	return Result{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errs)
}
