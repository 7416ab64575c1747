package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthlabs/hearth/ui/tui"
)

func newWatchCmd(opts *options) *cobra.Command {
	var interval int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of pending triggers and daemon health",
		Long: `Open a full-screen table of pending triggers that refreshes on an
interval. Keys: r refresh now, c cancel the selected trigger, q or Esc quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}

			cli, err := opts.client()
			if err != nil {
				return err
			}

			refresh := opts.watchInterval()
			if interval > 0 {
				refresh = time.Duration(interval) * time.Second
			}

			return tui.NewWatch(cli, refresh, logger).Run()
		},
	}

	cmd.Flags().IntVar(&interval, "interval", 0, "refresh interval in seconds (default from config)")
	return cmd
}
