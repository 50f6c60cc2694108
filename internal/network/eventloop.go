// Package network drives a swarm from a single goroutine and hands callers a
// Client whose methods block until their operation completes.
package network

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/oneshot"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/swarm"
)

// InboundRequest is a file request from a remote peer awaiting RespondFile.
type InboundRequest struct {
	Peer    peer.ID
	Name    string
	Channel *swarm.ResponseChannel
}

// EventLoop is the only owner of the swarm and of the pending operation
// tables. All of its state is touched from Run alone.
type EventLoop struct {
	swarm    swarm.Swarm
	commands chan command
	events   chan InboundRequest
	logger   *slog.Logger

	stop context.CancelFunc

	pendingDial           map[peer.ID]*oneshot.Sender[struct{}]
	pendingStartProviding map[swarm.QueryID]*oneshot.Sender[struct{}]
	pendingGetProviders   map[swarm.QueryID]*oneshot.Sender[swarm.ProviderSet]
	pendingRequestFile    map[swarm.RequestID]*oneshot.Sender[string]
}

// New wires a Client to an EventLoop over sw. The caller must start Run.
func New(sw swarm.Swarm, cfg Config) (*Client, <-chan InboundRequest, *EventLoop) {
	cfg = cfg.withDefaults()

	stopped, stop := context.WithCancel(context.Background())

	loop := &EventLoop{
		swarm:    sw,
		commands: make(chan command, cfg.CommandBuffer),
		events:   make(chan InboundRequest, cfg.EventBuffer),
		logger:   cfg.Logger,
		stop:     stop,

		pendingDial:           make(map[peer.ID]*oneshot.Sender[struct{}]),
		pendingStartProviding: make(map[swarm.QueryID]*oneshot.Sender[struct{}]),
		pendingGetProviders:   make(map[swarm.QueryID]*oneshot.Sender[swarm.ProviderSet]),
		pendingRequestFile:    make(map[swarm.RequestID]*oneshot.Sender[string]),
	}

	client := &Client{
		commands: loop.commands,
		stopped:  stopped,
	}

	return client, loop.events, loop
}

// Run processes one command or swarm event at a time until the client closes
// the command queue, ctx ends, or a completion arrives that matches nothing.
// On return every pending caller is released, the inbound channel is closed
// and the swarm is closed.
func (l *EventLoop) Run(ctx context.Context) error {
	defer l.shutdown()

	events := l.swarm.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-l.commands:
			if !ok {
				l.logger.Debug("Command queue closed, stopping event loop")
				return nil
			}
			l.handleCommand(cmd)
		case ev, ok := <-events:
			if !ok {
				return ErrSwarmClosed
			}
			if err := l.handleEvent(ev); err != nil {
				l.logger.Error("Stopping event loop", "error", err)
				return err
			}
		}
	}
}

func (l *EventLoop) handleCommand(cmd command) {
	switch c := cmd.(type) {
	case startListening:
		_ = c.reply.Send(struct{}{}, l.swarm.Listen(c.addr))

	case dial:
		if _, ok := l.pendingDial[c.peer]; ok {
			_ = c.reply.Fail(fmt.Errorf("%w: %s", ErrAlreadyDialing, c.peer))
			return
		}
		if c.addr != nil {
			l.swarm.AddAddress(c.peer, c.addr)
		}
		l.logger.Info("Dialing peer", "peer", c.peer, "addr", c.addr)
		if err := l.swarm.Dial(c.peer, c.addr); err != nil {
			_ = c.reply.Fail(fmt.Errorf("dialing %s: %w", c.peer, err))
			return
		}
		l.pendingDial[c.peer] = c.reply

	case startProviding:
		id, err := l.swarm.StartProviding([]byte(c.name))
		if err != nil {
			_ = c.reply.Fail(fmt.Errorf("providing %q: %w", c.name, err))
			return
		}
		l.pendingStartProviding[id] = c.reply

	case getProviders:
		id := l.swarm.GetProviders([]byte(c.name))
		l.pendingGetProviders[id] = c.reply

	case requestFile:
		id := l.swarm.SendRequest(c.peer, c.name)
		l.pendingRequestFile[id] = c.reply

	case respondFile:
		_ = c.reply.Send(struct{}{}, l.swarm.SendResponse(c.channel, c.content))

	default:
		l.logger.Warn("Unhandled command", "command", fmt.Sprintf("%T", cmd))
		cmd.abandon()
	}
}

func (l *EventLoop) handleEvent(ev swarm.Event) error {
	switch e := ev.(type) {
	case swarm.StartProvidingDone:
		reply, ok := l.pendingStartProviding[e.ID]
		if !ok {
			return fmt.Errorf("%w: start providing %d", ErrUnknownQuery, e.ID)
		}
		delete(l.pendingStartProviding, e.ID)
		_ = reply.Send(struct{}{}, e.Err)

	case swarm.GetProvidersDone:
		reply, ok := l.pendingGetProviders[e.ID]
		if !ok {
			return fmt.Errorf("%w: get providers %d", ErrUnknownQuery, e.ID)
		}
		delete(l.pendingGetProviders, e.ID)
		if e.Err != nil {
			_ = reply.Fail(e.Err)
			return nil
		}
		providers := e.Providers
		if providers == nil {
			providers = swarm.NewProviderSet()
		}
		_ = reply.Ok(providers)

	case swarm.InboundRequest:
		req := InboundRequest{Peer: e.Peer, Name: e.Request, Channel: e.Channel}
		select {
		case l.events <- req:
		default:
			l.logger.Warn("Dropping inbound request, no reader", "peer", e.Peer, "name", e.Request)
		}

	case swarm.ResponseReceived:
		reply, ok := l.pendingRequestFile[e.ID]
		if !ok {
			return fmt.Errorf("%w: response %d", ErrUnknownRequest, e.ID)
		}
		delete(l.pendingRequestFile, e.ID)
		_ = reply.Ok(e.Response)

	case swarm.OutboundFailure:
		reply, ok := l.pendingRequestFile[e.ID]
		if !ok {
			return fmt.Errorf("%w: failure %d", ErrUnknownRequest, e.ID)
		}
		delete(l.pendingRequestFile, e.ID)
		_ = reply.Fail(fmt.Errorf("request to %s: %w", e.Peer, e.Err))

	case swarm.ConnectionEstablished:
		if !e.Outbound {
			l.logger.Debug("Inbound connection", "peer", e.Peer)
			return nil
		}
		reply, ok := l.pendingDial[e.Peer]
		if !ok {
			return fmt.Errorf("%w: connection to %s", ErrUnknownDial, e.Peer)
		}
		delete(l.pendingDial, e.Peer)
		l.logger.Info("Connected to peer", "peer", e.Peer)
		_ = reply.Ok(struct{}{})

	case swarm.OutgoingConnectionError:
		reply, ok := l.pendingDial[e.Peer]
		if !ok {
			return fmt.Errorf("%w: connection error for %s", ErrUnknownDial, e.Peer)
		}
		delete(l.pendingDial, e.Peer)
		_ = reply.Fail(fmt.Errorf("dialing %s: %w", e.Peer, e.Err))

	case swarm.NewListenAddr:
		l.logger.Info("Local node is listening", "addr", fmt.Sprintf("%s/p2p/%s", e.Addr, l.swarm.LocalPeer()))

	case swarm.ConnectionClosed:
		l.logger.Debug("Connection closed", "peer", e.Peer)

	default:
		l.logger.Debug("Ignoring swarm event", "event", fmt.Sprintf("%T", ev))
	}
	return nil
}

func (l *EventLoop) shutdown() {
	l.stop()
	l.drainCommands()

	for id, reply := range l.pendingDial {
		reply.Drop()
		delete(l.pendingDial, id)
	}
	for id, reply := range l.pendingStartProviding {
		reply.Drop()
		delete(l.pendingStartProviding, id)
	}
	for id, reply := range l.pendingGetProviders {
		reply.Drop()
		delete(l.pendingGetProviders, id)
	}
	for id, reply := range l.pendingRequestFile {
		reply.Drop()
		delete(l.pendingRequestFile, id)
	}

	close(l.events)

	if err := l.swarm.Close(); err != nil {
		l.logger.Warn("Failed to close swarm", "error", err)
	}
}

// drainCommands releases callers whose commands were queued but never run.
func (l *EventLoop) drainCommands() {
	for {
		select {
		case cmd, ok := <-l.commands:
			if !ok {
				return
			}
			cmd.abandon()
		default:
			return
		}
	}
}
