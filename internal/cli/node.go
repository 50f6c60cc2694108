package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/catalog"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/fileshare"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/identity"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/network"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/swarm"
)

var errPeerIDMissing = errors.New("expect peer multiaddr to contain peer ID")

// node is a running event loop with its client, listening and connected to
// the optional --peer.
type node struct {
	client  *network.Client
	events  <-chan network.InboundRequest
	catalog *catalog.Catalog
	logger  *slog.Logger
	loopErr chan error
}

type nodeOptions struct {
	seed    *uint8
	listen  ma.Multiaddr
	remote  *peer.AddrInfo
	buffer  int
	catalog string
}

func parseNodeOptions(cmd *cobra.Command) (nodeOptions, error) {
	opts := nodeOptions{buffer: commandBuffer, catalog: dbPath}

	if cmd.Flags().Changed("secret-key-seed") {
		seed := secretKeySeed
		opts.seed = &seed
	}

	listen, err := ma.NewMultiaddr(listenAddress)
	if err != nil {
		return nodeOptions{}, fmt.Errorf("parsing listen address %q: %w", listenAddress, err)
	}
	opts.listen = listen

	if peerAddr != "" {
		remote, err := parsePeerAddr(peerAddr)
		if err != nil {
			return nodeOptions{}, err
		}
		opts.remote = remote
	}

	return opts, nil
}

func parsePeerAddr(s string) (*peer.AddrInfo, error) {
	addr, err := ma.NewMultiaddr(s)
	if err != nil {
		return nil, fmt.Errorf("parsing peer address %q: %w", s, err)
	}

	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil || len(info.Addrs) == 0 {
		return nil, errPeerIDMissing
	}
	return info, nil
}

func startNode(ctx context.Context, opts nodeOptions, logger *slog.Logger) (*node, error) {
	id, err := identity.Derive(opts.seed)
	if err != nil {
		return nil, err
	}
	logger.Info("Local peer id", "peer", id.ID)

	sw, err := swarm.New(swarm.Config{Identity: id, Logger: logger})
	if err != nil {
		return nil, err
	}

	client, events, loop := network.New(sw, network.Config{
		CommandBuffer: opts.buffer,
		Logger:        logger,
	})

	n := &node{
		client:  client,
		events:  events,
		logger:  logger,
		loopErr: make(chan error, 1),
	}
	go func() { n.loopErr <- loop.Run(ctx) }()

	fail := func(err error) (*node, error) {
		return nil, multierr.Append(err, n.close())
	}

	if opts.catalog != "" {
		if n.catalog, err = catalog.Open(opts.catalog); err != nil {
			return fail(err)
		}
	}

	if err := client.StartListening(ctx, opts.listen); err != nil {
		return fail(err)
	}

	if opts.remote != nil {
		if err := client.Dial(ctx, opts.remote.ID, opts.remote.Addrs[0]); err != nil {
			return fail(err)
		}
	}

	return n, nil
}

// recorder is nil when the catalog is disabled.
func (n *node) recorder() fileshare.Recorder {
	if n.catalog == nil {
		return nil
	}
	return n.catalog
}

// close stops the event loop and reports why it ended if that was not a
// clean shutdown.
func (n *node) close() error {
	var err error
	if cerr := n.client.Close(); cerr != nil && !errors.Is(cerr, network.ErrClientClosed) {
		err = multierr.Append(err, cerr)
	}

	if lerr := <-n.loopErr; lerr != nil && !errors.Is(lerr, context.Canceled) {
		err = multierr.Append(err, fmt.Errorf("event loop: %w", lerr))
	}

	if n.catalog != nil {
		err = multierr.Append(err, n.catalog.Close())
	}
	return err
}
