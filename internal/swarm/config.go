package swarm

import (
	"log/slog"
	"time"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/identity"
)

const (
	DefaultProtocolPrefix   = "/fileshare"
	DefaultRequestTimeout   = 10 * time.Second
	DefaultProvidersTimeout = 10 * time.Second
	DefaultDialTimeout      = 10 * time.Second
	DefaultInboundTimeout   = 30 * time.Second
	DefaultRoutingWarmup    = 2 * time.Second
	DefaultEventBuffer      = 64
)

type Config struct {
	Identity identity.Identity
	Logger   *slog.Logger

	// ProtocolPrefix namespaces the DHT so that only fileshare nodes join the
	// same routing table.
	ProtocolPrefix string

	RequestTimeout   time.Duration
	ProvidersTimeout time.Duration
	DialTimeout      time.Duration
	InboundTimeout   time.Duration

	// RoutingWarmup bounds how long a provider lookup waits for a freshly
	// connected peer to enter the routing table.
	RoutingWarmup time.Duration

	EventBuffer int
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.ProtocolPrefix == "" {
		c.ProtocolPrefix = DefaultProtocolPrefix
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ProvidersTimeout <= 0 {
		c.ProvidersTimeout = DefaultProvidersTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.InboundTimeout <= 0 {
		c.InboundTimeout = DefaultInboundTimeout
	}
	if c.RoutingWarmup <= 0 {
		c.RoutingWarmup = DefaultRoutingWarmup
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	return c
}
