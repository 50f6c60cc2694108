package network

import "log/slog"

const (
	DefaultCommandBuffer = 16
	DefaultEventBuffer   = 16
)

type Config struct {
	// CommandBuffer bounds the queue between clients and the event loop.
	// Clients block once it is full.
	CommandBuffer int

	// EventBuffer bounds the inbound request sink. Requests arriving while it
	// is full are dropped.
	EventBuffer int

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.CommandBuffer <= 0 {
		c.CommandBuffer = DefaultCommandBuffer
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
