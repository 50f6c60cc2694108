package network

import (
	"errors"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/swarm"
)

var errUnreachable = errors.New("peer unreachable")

// fakeNet connects fake swarms in memory and keeps a shared provider table.
type fakeNet struct {
	mu      sync.Mutex
	nodes   map[peer.ID]*fakeSwarm
	records map[string]swarm.ProviderSet
}

func newFakeNet() *fakeNet {
	return &fakeNet{
		nodes:   make(map[peer.ID]*fakeSwarm),
		records: make(map[string]swarm.ProviderSet),
	}
}

func (n *fakeNet) join(self peer.ID) *fakeSwarm {
	n.mu.Lock()
	defer n.mu.Unlock()

	f := &fakeSwarm{
		net:    n,
		self:   self,
		events: make(chan swarm.Event, 128),
		addrs:  make(map[peer.ID]ma.Multiaddr),
	}
	n.nodes[self] = f
	return f
}

func (n *fakeNet) node(p peer.ID) *fakeSwarm {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nodes[p]
}

func (n *fakeNet) provide(key string, p peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.records[key] == nil {
		n.records[key] = swarm.NewProviderSet()
	}
	n.records[key].Add(p)
}

func (n *fakeNet) providers(key string) swarm.ProviderSet {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := swarm.NewProviderSet()
	for p := range n.records[key] {
		out.Add(p)
	}
	return out
}

// fakeSwarm completes operations immediately unless hold is set, in which
// case the test injects completions itself.
type fakeSwarm struct {
	net    *fakeNet
	self   peer.ID
	events chan swarm.Event

	mu          sync.Mutex
	hold        bool
	listenErr   error
	dialErr     error
	listening   []ma.Multiaddr
	addrs       map[peer.ID]ma.Multiaddr
	dials       []peer.ID
	requests    []string
	nextQuery   swarm.QueryID
	nextRequest swarm.RequestID
	closed      bool
}

var _ swarm.Swarm = (*fakeSwarm)(nil)

func (f *fakeSwarm) LocalPeer() peer.ID { return f.self }

func (f *fakeSwarm) Events() <-chan swarm.Event { return f.events }

func (f *fakeSwarm) Listen(addr ma.Multiaddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listenErr != nil {
		return f.listenErr
	}
	f.listening = append(f.listening, addr)
	f.events <- swarm.NewListenAddr{Addr: addr}
	return nil
}

func (f *fakeSwarm) AddAddress(p peer.ID, addr ma.Multiaddr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrs[p] = addr
}

func (f *fakeSwarm) Dial(p peer.ID, _ ma.Multiaddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dialErr != nil {
		return f.dialErr
	}
	f.dials = append(f.dials, p)
	if f.hold {
		return nil
	}

	if f.net.node(p) == nil {
		f.events <- swarm.OutgoingConnectionError{Peer: p, Err: errUnreachable}
		return nil
	}
	f.events <- swarm.ConnectionEstablished{Peer: p, Outbound: true}
	return nil
}

func (f *fakeSwarm) StartProviding(key []byte) (swarm.QueryID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextQuery++
	id := f.nextQuery
	if f.hold {
		return id, nil
	}

	f.net.provide(string(key), f.self)
	f.events <- swarm.StartProvidingDone{ID: id}
	return id, nil
}

func (f *fakeSwarm) GetProviders(key []byte) swarm.QueryID {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextQuery++
	id := f.nextQuery
	if f.hold {
		return id
	}

	f.events <- swarm.GetProvidersDone{ID: id, Providers: f.net.providers(string(key))}
	return id
}

func (f *fakeSwarm) SendRequest(p peer.ID, name string) swarm.RequestID {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextRequest++
	id := f.nextRequest
	f.requests = append(f.requests, name)
	if f.hold {
		return id
	}

	target := f.net.node(p)
	if target == nil {
		f.events <- swarm.OutboundFailure{ID: id, Peer: p, Err: errUnreachable}
		return id
	}

	ch := swarm.NewResponseChannel(f.self, func(content string) error {
		f.events <- swarm.ResponseReceived{ID: id, Response: content}
		return nil
	})
	target.events <- swarm.InboundRequest{Peer: f.self, Request: name, Channel: ch}
	return id
}

func (f *fakeSwarm) SendResponse(ch *swarm.ResponseChannel, content string) error {
	return ch.Respond(content)
}

func (f *fakeSwarm) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSwarm) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSwarm) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dials)
}

func (f *fakeSwarm) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeSwarm) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int(f.nextQuery)
}

func (f *fakeSwarm) setHold(hold bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = hold
}
