package swarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	kb "github.com/libp2p/go-libp2p-kbucket"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	libp2pprotocol "github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	mh "github.com/multiformats/go-multihash"
	"go.uber.org/multierr"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/protocol"
)

var (
	ErrClosed            = errors.New("swarm closed")
	ErrDialSelf          = errors.New("cannot dial self")
	ErrNoIdentity        = errors.New("swarm requires an identity")
	ErrUnexpectedMessage = errors.New("unexpected message")
)

// Host implements Swarm on a libp2p host with a Kademlia DHT for provider
// records and one stream per file request.
type Host struct {
	cfg    Config
	logger *slog.Logger
	codec  *protocol.Codec

	host     host.Host
	dht      *dht.IpfsDHT
	notifiee *network.NotifyBundle

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	nextQuery   atomic.Uint64
	nextRequest atomic.Uint64
	closeOnce   sync.Once
	closeErr    error
}

var _ Swarm = (*Host)(nil)

func New(cfg Config) (*Host, error) {
	cfg = cfg.withDefaults()
	if cfg.Identity.PrivKey == nil {
		return nil, ErrNoIdentity
	}

	lh, err := libp2p.New(
		libp2p.Identity(cfg.Identity.PrivKey),
		libp2p.NoListenAddrs,
	)
	if err != nil {
		return nil, fmt.Errorf("creating libp2p host: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	kad, err := dht.New(ctx, lh,
		dht.Mode(dht.ModeServer),
		dht.ProtocolPrefix(libp2pprotocol.ID(cfg.ProtocolPrefix)),
	)
	if err != nil {
		cancel()
		_ = lh.Close()
		return nil, fmt.Errorf("creating dht: %w", err)
	}

	h := &Host{
		cfg:    cfg,
		logger: cfg.Logger,
		codec:  protocol.NewCodec(),
		host:   lh,
		dht:    kad,
		events: make(chan Event, cfg.EventBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	h.notifiee = &network.NotifyBundle{
		ListenF: func(_ network.Network, addr ma.Multiaddr) {
			h.tryEmit(NewListenAddr{Addr: addr})
		},
		ConnectedF: func(_ network.Network, c network.Conn) {
			if c.Stat().Direction == network.DirInbound {
				h.tryEmit(ConnectionEstablished{Peer: c.RemotePeer()})
			}
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			h.tryEmit(ConnectionClosed{Peer: c.RemotePeer()})
		},
	}
	lh.Network().Notify(h.notifiee)
	lh.SetStreamHandler(protocol.ID, h.handleStream)

	return h, nil
}

// ProviderKey maps a file name onto the DHT key space.
func ProviderKey(key []byte) (cid.Cid, error) {
	digest, err := mh.Sum(key, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, digest), nil
}

func (h *Host) LocalPeer() peer.ID {
	return h.host.ID()
}

// Addrs returns the addresses the host is bound to.
func (h *Host) Addrs() []ma.Multiaddr {
	return h.host.Network().ListenAddresses()
}

func (h *Host) Events() <-chan Event {
	return h.events
}

func (h *Host) Listen(addr ma.Multiaddr) error {
	if err := h.host.Network().Listen(addr); err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return nil
}

func (h *Host) AddAddress(p peer.ID, addr ma.Multiaddr) {
	h.host.Peerstore().AddAddr(p, addr, peerstore.PermanentAddrTTL)
}

func (h *Host) Dial(p peer.ID, addr ma.Multiaddr) error {
	if h.ctx.Err() != nil {
		return ErrClosed
	}
	if p == h.host.ID() {
		return ErrDialSelf
	}

	info := peer.AddrInfo{ID: p}
	if addr != nil {
		info.Addrs = []ma.Multiaddr{addr}
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(h.ctx, h.cfg.DialTimeout)
		defer cancel()

		if err := h.host.Connect(ctx, info); err != nil {
			h.emit(OutgoingConnectionError{Peer: p, Err: err})
			return
		}
		h.emit(ConnectionEstablished{Peer: p, Outbound: true})
	}()
	return nil
}

func (h *Host) StartProviding(key []byte) (QueryID, error) {
	c, err := ProviderKey(key)
	if err != nil {
		return 0, fmt.Errorf("building provider key: %w", err)
	}

	id := QueryID(h.nextQuery.Add(1))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(h.ctx, h.cfg.ProvidersTimeout)
		defer cancel()

		h.awaitRoutingTable(ctx)
		err := h.dht.Provide(ctx, c, true)
		if errors.Is(err, kb.ErrLookupFailure) {
			// The record is already in the local provider store.
			h.logger.Warn("No peers to replicate provider record to", "key", c.String())
			err = nil
		}
		h.emit(StartProvidingDone{ID: id, Err: err})
	}()
	return id, nil
}

func (h *Host) GetProviders(key []byte) QueryID {
	id := QueryID(h.nextQuery.Add(1))

	c, err := ProviderKey(key)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		if err != nil {
			h.emit(GetProvidersDone{ID: id, Err: fmt.Errorf("building provider key: %w", err)})
			return
		}

		ctx, cancel := context.WithTimeout(h.ctx, h.cfg.ProvidersTimeout)
		defer cancel()

		h.awaitRoutingTable(ctx)
		providers := NewProviderSet()
		for info := range h.dht.FindProvidersAsync(ctx, c, 0) {
			providers.Add(info.ID)
		}
		h.emit(GetProvidersDone{ID: id, Providers: providers})
	}()
	return id
}

func (h *Host) SendRequest(p peer.ID, name string) RequestID {
	id := RequestID(h.nextRequest.Add(1))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		content, err := h.request(p, name)
		if err != nil {
			h.emit(OutboundFailure{ID: id, Peer: p, Err: err})
			return
		}
		h.emit(ResponseReceived{ID: id, Response: content})
	}()
	return id
}

func (h *Host) SendResponse(ch *ResponseChannel, content string) error {
	if err := ch.Respond(content); err != nil {
		return err
	}
	h.tryEmit(ResponseSent{Peer: ch.Peer()})
	return nil
}

func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		h.host.Network().StopNotify(h.notifiee)
		h.wg.Wait()
		h.closeErr = multierr.Combine(h.dht.Close(), h.host.Close())
	})
	return h.closeErr
}

func (h *Host) request(p peer.ID, name string) (string, error) {
	ctx, cancel := context.WithTimeout(h.ctx, h.cfg.RequestTimeout)
	defer cancel()

	s, err := h.host.NewStream(ctx, p, protocol.ID)
	if err != nil {
		return "", fmt.Errorf("opening stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}

	if err := h.codec.Encode(s, &protocol.FileReq{Name: name}); err != nil {
		_ = s.Reset()
		return "", fmt.Errorf("sending request: %w", err)
	}
	if err := s.CloseWrite(); err != nil {
		_ = s.Reset()
		return "", fmt.Errorf("sending request: %w", err)
	}

	msg, err := h.codec.Decode(s)
	if err != nil {
		_ = s.Reset()
		return "", fmt.Errorf("reading response: %w", err)
	}
	_ = s.Close()

	switch m := msg.(type) {
	case *protocol.FileRes:
		return m.Content, nil
	case *protocol.Error:
		return "", m
	default:
		return "", fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Type())
	}
}

func (h *Host) handleStream(s network.Stream) {
	remote := s.Conn().RemotePeer()
	_ = s.SetReadDeadline(time.Now().Add(h.cfg.InboundTimeout))

	msg, err := h.codec.Decode(s)
	if err != nil {
		h.logger.Debug("Failed to read request", "peer", remote, "error", err)
		_ = s.Reset()
		return
	}

	req, ok := msg.(*protocol.FileReq)
	if !ok {
		h.logger.Warn("Unexpected message on request stream", "peer", remote, "type", msg.Type().String())
		h.writeError(s, protocol.ErrInvalidMsg, "expected "+protocol.MsgFileReq.String())
		return
	}

	ch := NewResponseChannel(remote, func(content string) error {
		return h.writeResponse(s, content)
	})
	ch.expireAfter(h.cfg.InboundTimeout, func() {
		h.logger.Debug("Inbound request expired unanswered", "peer", remote, "name", req.Name)
		h.writeError(s, protocol.ErrFileNotFound, req.Name)
	})

	h.emit(InboundRequest{Peer: remote, Request: req.Name, Channel: ch})
}

func (h *Host) writeResponse(s network.Stream, content string) error {
	_ = s.SetWriteDeadline(time.Now().Add(h.cfg.RequestTimeout))

	if err := h.codec.Encode(s, &protocol.FileRes{Content: content}); err != nil {
		if errors.Is(err, protocol.ErrMessageTooLarge) {
			h.writeError(s, protocol.ErrInternal, "response too large")
		} else {
			_ = s.Reset()
		}
		return fmt.Errorf("responding to %s: %w", s.Conn().RemotePeer(), err)
	}
	return s.Close()
}

func (h *Host) writeError(s network.Stream, code protocol.ErrorCode, message string) {
	_ = s.SetWriteDeadline(time.Now().Add(h.cfg.RequestTimeout))

	if err := h.codec.Encode(s, &protocol.Error{Code: code, Message: message}); err != nil {
		_ = s.Reset()
		return
	}
	_ = s.Close()
}

// awaitRoutingTable gives the DHT a moment to admit peers that connected just
// before a query was issued.
func (h *Host) awaitRoutingTable(ctx context.Context) {
	if h.dht.RoutingTable().Size() > 0 || len(h.host.Network().Peers()) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.RoutingWarmup)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.dht.RoutingTable().Size() > 0 {
				return
			}
		}
	}
}

// emit delivers a completion event. It gives up only once the host closes.
func (h *Host) emit(ev Event) {
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	}
}

// tryEmit delivers informational events without ever blocking the caller.
func (h *Host) tryEmit(ev Event) {
	if h.ctx.Err() != nil {
		return
	}
	select {
	case h.events <- ev:
	default:
		h.logger.Debug("Dropping event, buffer full", "event", fmt.Sprintf("%T", ev))
	}
}
