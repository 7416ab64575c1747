package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDispatchCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Drain and inject fired-action dispatches",
	}
	cmd.AddCommand(
		newDispatchNextCmd(opts),
		newDispatchSendCmd(opts),
	)
	return cmd
}

func newDispatchNextCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Pop the oldest fired dispatch from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}

			disp, err := cli.NextDispatch(cmd.Context())
			if err != nil {
				return err
			}
			if disp == nil {
				fmt.Println("Queue is empty.")
				return nil
			}

			out, err := json.MarshalIndent(disp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render dispatch: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return cmd
}

func newDispatchSendCmd(opts *options) *cobra.Command {
	var (
		owner       string
		action      string
		description string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Enqueue a manual dispatch without a backing trigger",
		Example: `  hearth dispatch send --owner amal --action '{"command":"turn off all lights"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(action)) {
				return fmt.Errorf("--action must be valid JSON")
			}

			cli, err := opts.client()
			if err != nil {
				return err
			}

			disp, err := cli.SendDispatch(cmd.Context(), owner, json.RawMessage(action), description)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Enqueued dispatch %s\n", disp.TriggerID)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "user sending the dispatch (required)")
	cmd.Flags().StringVar(&action, "action", "", "JSON action payload (required)")
	cmd.Flags().StringVar(&description, "description", "", "human-readable description")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
