package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/catalog"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/fileshare"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/swarm"
)

var getName string

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "fetch a file by name",
	Long:  `look up the providers of a name and print the content returned by the first one to answer`,
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

		n, err := startNode(ctx, opts, logger)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, n.close()) }()

		var bar *progressbar.ProgressBar
		var fetchOpts []fileshare.FetchOption
		if isatty.IsTerminal(os.Stderr.Fd()) {
			fetchOpts = append(fetchOpts,
				fileshare.OnProviders(func(providers swarm.ProviderSet) {
					bar = progressbar.NewOptions(providers.Len(),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionSetDescription("Requesting "+getName),
						progressbar.OptionShowCount(),
						progressbar.OptionClearOnFinish(),
					)
				}),
				fileshare.OnAttempt(func(fileshare.Attempt) {
					_ = bar.Add(1)
				}),
			)
		}

		res, err := fileshare.Fetch(ctx, n.client, getName, fetchOpts...)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}
		logger.Info("Fetched file", "name", getName, "peer", res.Provider, "size", humanize.Bytes(uint64(len(res.Content))))

		if n.catalog != nil {
			if err := n.catalog.RecordTransfer(ctx, getName, res.Provider, catalog.Received, int64(len(res.Content))); err != nil {
				logger.Warn("Failed to record transfer", "name", getName, "error", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Content of file %s: %s\n", getName, res.Content)
		return nil
	},
}

func init() {
	getCmd.Flags().StringVar(&getName, "name", "", "name of the file to fetch")
	_ = getCmd.MarkFlagRequired("name")
}
