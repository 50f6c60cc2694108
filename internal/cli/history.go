package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/catalog"
)

var errCatalogDisabled = errors.New("catalog disabled, pass --db")

var historyName string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "list recorded transfers",
	Long:  `list the transfers recorded in the local catalog, optionally for one name`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return errCatalogDisabled
		}

		c, err := catalog.Open(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		transfers, err := c.Transfers(cmd.Context(), historyName)
		if err != nil {
			return err
		}

		return writeTransfers(cmd.OutOrStdout(), transfers)
	},
}

func writeTransfers(out io.Writer, transfers []catalog.Transfer) error {
	if len(transfers) == 0 {
		_, err := fmt.Fprintln(out, "No transfers recorded")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tDIRECTION\tNAME\tPEER\tSIZE")
	for _, t := range transfers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(t.CreatedAt), t.Direction, t.Name, t.Peer, humanize.Bytes(uint64(t.Size)))
	}
	return w.Flush()
}

func init() {
	historyCmd.Flags().StringVar(&historyName, "name", "", "only list transfers of this name")
}
