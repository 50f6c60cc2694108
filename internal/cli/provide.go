package cli

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/fileshare"
)

var (
	providePath string
	provideName string
)

var provideCmd = &cobra.Command{
	Use:   "provide",
	Short: "share a local file",
	Long:  `advertise a local file under a name and serve it to peers until interrupted`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		logger, err := newLogger()
		if err != nil {
			return err
		}
		opts, err := parseNodeOptions(cmd)
		if err != nil {
			return err
		}

		path, err := filepath.Abs(providePath)
		if err != nil {
			return err
		}

		n, err := startNode(ctx, opts, logger)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, n.close()) }()

		if n.catalog != nil {
			if _, _, err := n.catalog.RecordShare(ctx, provideName, path); err != nil {
				logger.Warn("Failed to record share", "name", provideName, "error", err)
			}
		}

		err = fileshare.Provide(ctx, n.client, n.events, fileshare.ProvideConfig{
			Name:     provideName,
			Path:     path,
			Recorder: n.recorder(),
			Logger:   logger,
		})
		if errors.Is(err, context.Canceled) {
			logger.Info("Stopped providing", "name", provideName)
			return nil
		}
		return err
	},
}

func init() {
	provideCmd.Flags().StringVar(&providePath, "path", "", "path of the file to share")
	provideCmd.Flags().StringVar(&provideName, "name", "", "name to share the file under")
	_ = provideCmd.MarkFlagRequired("path")
	_ = provideCmd.MarkFlagRequired("name")
}
