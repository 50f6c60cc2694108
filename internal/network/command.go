package network

import (
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/oneshot"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/swarm"
)

// command is a request from a Client to the event loop. Every command carries
// the reply half that the loop resolves exactly once.
type command interface {
	abandon()
}

type startListening struct {
	addr  ma.Multiaddr
	reply *oneshot.Sender[struct{}]
}

type dial struct {
	peer  peer.ID
	addr  ma.Multiaddr
	reply *oneshot.Sender[struct{}]
}

type startProviding struct {
	name  string
	reply *oneshot.Sender[struct{}]
}

type getProviders struct {
	name  string
	reply *oneshot.Sender[swarm.ProviderSet]
}

type requestFile struct {
	peer  peer.ID
	name  string
	reply *oneshot.Sender[string]
}

type respondFile struct {
	content string
	channel *swarm.ResponseChannel
	reply   *oneshot.Sender[struct{}]
}

func (c startListening) abandon() { c.reply.Drop() }
func (c dial) abandon()           { c.reply.Drop() }
func (c startProviding) abandon() { c.reply.Drop() }
func (c getProviders) abandon()   { c.reply.Drop() }
func (c requestFile) abandon()    { c.reply.Drop() }
func (c respondFile) abandon()    { c.reply.Drop() }
