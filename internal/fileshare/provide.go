package fileshare

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/catalog"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/network"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/swarm"
)

// Server is the part of network.Client that providing needs.
type Server interface {
	StartProviding(ctx context.Context, name string) error
	RespondFile(ctx context.Context, content string, ch *swarm.ResponseChannel) error
}

// Recorder receives one entry per served request.
type Recorder interface {
	RecordTransfer(ctx context.Context, name string, p peer.ID, direction catalog.Direction, size int64) error
}

type ProvideConfig struct {
	Name     string
	Path     string
	Recorder Recorder
	Logger   *slog.Logger
}

// Provide advertises cfg.Name and answers matching requests with the current
// content of cfg.Path until ctx ends or requests is closed.
func Provide(ctx context.Context, s Server, requests <-chan network.InboundRequest, cfg ProvideConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := s.StartProviding(ctx, cfg.Name); err != nil {
		return fmt.Errorf("advertising %s: %w", cfg.Name, err)
	}
	logger.Info("Providing file", "name", cfg.Name, "path", cfg.Path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-requests:
			if !ok {
				return nil
			}
			serve(ctx, s, req, cfg, logger)
		}
	}
}

func serve(ctx context.Context, s Server, req network.InboundRequest, cfg ProvideConfig, logger *slog.Logger) {
	if req.Name != cfg.Name {
		logger.Debug("Ignoring request for unknown file", "peer", req.Peer, "name", req.Name)
		return
	}

	// Read on every request so edits to the file are served.
	content, err := os.ReadFile(cfg.Path)
	if err != nil {
		logger.Error("Failed to read shared file", "path", cfg.Path, "error", err)
		return
	}

	if err := s.RespondFile(ctx, string(content), req.Channel); err != nil {
		logger.Warn("Failed to respond", "peer", req.Peer, "name", req.Name, "error", err)
		return
	}
	logger.Info("Served file", "peer", req.Peer, "name", req.Name, "size", len(content))

	if cfg.Recorder != nil {
		if err := cfg.Recorder.RecordTransfer(ctx, req.Name, req.Peer, catalog.Sent, int64(len(content))); err != nil {
			logger.Warn("Failed to record transfer", "name", req.Name, "error", err)
		}
	}
}
