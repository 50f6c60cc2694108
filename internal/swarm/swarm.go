// Package swarm exposes the peer-to-peer substrate as non-blocking calls that
// return correlation ids, with every outcome delivered later as an Event.
package swarm

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

var ErrResponseChannelUsed = errors.New("response channel already used")

type QueryID uint64

type RequestID uint64

// Swarm is owned by a single goroutine. None of its methods block on the
// network; long-running work completes through Events.
type Swarm interface {
	LocalPeer() peer.ID
	Listen(addr ma.Multiaddr) error
	AddAddress(p peer.ID, addr ma.Multiaddr)
	Dial(p peer.ID, addr ma.Multiaddr) error
	StartProviding(key []byte) (QueryID, error)
	GetProviders(key []byte) QueryID
	SendRequest(p peer.ID, name string) RequestID
	SendResponse(ch *ResponseChannel, content string) error
	Events() <-chan Event
	Close() error
}

type Event interface {
	isEvent()
}

type StartProvidingDone struct {
	ID  QueryID
	Err error
}

type GetProvidersDone struct {
	ID        QueryID
	Providers ProviderSet
	Err       error
}

type InboundRequest struct {
	Peer    peer.ID
	Request string
	Channel *ResponseChannel
}

type ResponseReceived struct {
	ID       RequestID
	Response string
}

type OutboundFailure struct {
	ID   RequestID
	Peer peer.ID
	Err  error
}

// ConnectionEstablished with Outbound set completes a Dial. Inbound
// connections are informational.
type ConnectionEstablished struct {
	Peer     peer.ID
	Outbound bool
}

type OutgoingConnectionError struct {
	Peer peer.ID
	Err  error
}

type NewListenAddr struct {
	Addr ma.Multiaddr
}

type ConnectionClosed struct {
	Peer peer.ID
}

type ResponseSent struct {
	Peer peer.ID
}

func (StartProvidingDone) isEvent()      {}
func (GetProvidersDone) isEvent()        {}
func (InboundRequest) isEvent()          {}
func (ResponseReceived) isEvent()        {}
func (OutboundFailure) isEvent()         {}
func (ConnectionEstablished) isEvent()   {}
func (OutgoingConnectionError) isEvent() {}
func (NewListenAddr) isEvent()           {}
func (ConnectionClosed) isEvent()        {}
func (ResponseSent) isEvent()            {}

type ProviderSet map[peer.ID]struct{}

func NewProviderSet(ids ...peer.ID) ProviderSet {
	s := make(ProviderSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ProviderSet) Add(id peer.ID) {
	s[id] = struct{}{}
}

func (s ProviderSet) Has(id peer.ID) bool {
	_, ok := s[id]
	return ok
}

func (s ProviderSet) Len() int {
	return len(s)
}

// Peers returns the members in a stable order.
func (s ProviderSet) Peers() []peer.ID {
	ids := make([]peer.ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ResponseChannel answers exactly one inbound request.
type ResponseChannel struct {
	peer    peer.ID
	respond func(content string) error

	mu    sync.Mutex
	used  bool
	timer *time.Timer
}

func NewResponseChannel(p peer.ID, respond func(content string) error) *ResponseChannel {
	return &ResponseChannel{peer: p, respond: respond}
}

func (c *ResponseChannel) Peer() peer.ID {
	return c.peer
}

func (c *ResponseChannel) Respond(content string) error {
	if !c.claim() {
		return ErrResponseChannelUsed
	}
	return c.respond(content)
}

func (c *ResponseChannel) Used() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *ResponseChannel) claim() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.used {
		return false
	}
	c.used = true
	if c.timer != nil {
		c.timer.Stop()
	}
	return true
}

// expireAfter runs fn once d elapses unless the channel was answered first.
func (c *ResponseChannel) expireAfter(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer = time.AfterFunc(d, func() {
		if c.claim() {
			fn()
		}
	})
}
