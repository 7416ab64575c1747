package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newResetCmd(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Cancel all pending triggers and drain the dispatch queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Print("Cancel ALL pending triggers and drop queued dispatches? [y/N] ")
				reader := bufio.NewReader(os.Stdin)
				response, _ := reader.ReadString('\n')
				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					fmt.Println("Cancelled.")
					return nil
				}
			}

			cli, err := opts.client()
			if err != nil {
				return err
			}

			result, err := cli.Reset(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("✓ Cancelled %d trigger(s), dropped %d dispatch(es)\n",
				result.CancelledTriggers, result.DroppedDispatches)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}
