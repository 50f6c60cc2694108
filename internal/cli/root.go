// Package cli defines the fileshare command tree.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/logger"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/network"
)

const (
	defaultListenAddress = "/ip4/0.0.0.0/tcp/0"
	defaultDBPath        = "fileshare.sqlite3"
)

var (
	secretKeySeed uint8
	peerAddr      string
	listenAddress string
	commandBuffer int
	dbPath        string
	logLevel      string
)

var rootCmd = &cobra.Command{
	Use:   "fileshare",
	Short: "share files over a peer-to-peer network",
	Long: `fileshare advertises local files on a Kademlia DHT and fetches files
from whichever peer advertising them answers first`,
	SilenceUsage: true,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return logger.NewLoggerWithLevel(level), nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Uint8Var(&secretKeySeed, "secret-key-seed", 0, "seed for a deterministic peer identity")
	flags.StringVar(&peerAddr, "peer", "", "multiaddr of a peer to dial, ending in /p2p/<peer id>")
	flags.StringVar(&listenAddress, "listen-address", defaultListenAddress, "multiaddr to listen on")
	flags.IntVar(&commandBuffer, "command-buffer", network.DefaultCommandBuffer, "capacity of the event loop command queue")
	flags.StringVar(&dbPath, "db", defaultDBPath, "path of the transfer catalog, empty to disable")
	flags.StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")

	rootCmd.AddCommand(provideCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(historyCmd)
}
