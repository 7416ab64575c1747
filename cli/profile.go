package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hearthlabs/hearth/client"
	"github.com/hearthlabs/hearth/memory"
)

func newProfileCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect and recompute per-user preference profiles",
	}
	cmd.AddCommand(
		newProfileShowCmd(opts),
		newProfileRefreshCmd(opts),
	)
	return cmd
}

func newProfileShowCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <user>",
		Short: "Show a user's stored preference profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}

			profile, err := cli.GetProfile(cmd.Context(), args[0])
			if err != nil {
				if client.IsNotFound(err) {
					fmt.Printf("No profile for %s. Run: hearth profile refresh %s\n", args[0], args[0])
					return nil
				}
				return err
			}
			printProfile(args[0], profile)
			return nil
		},
	}
	return cmd
}

func newProfileRefreshCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh <user>",
		Short: "Recompute a user's profile from their full history",
		Long: `Recompute a user's profile. Every day of history is summarized through the
oracle and the summaries are folded into one theme-to-preferences profile,
so this takes a model round trip per active day.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}

			fmt.Printf("Refreshing profile for %s...\n", args[0])
			profile, err := cli.RefreshProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printProfile(args[0], profile)
			return nil
		},
	}
	return cmd
}

// printProfile renders the theme lists in a stable order.
func printProfile(userID string, profile memory.Profile) {
	fmt.Printf("Profile for %s:\n", userID)
	themes := make([]string, 0, len(profile))
	for theme := range profile {
		themes = append(themes, theme)
	}
	sort.Strings(themes)

	for _, theme := range themes {
		values := profile[theme]
		if len(values) == 0 {
			fmt.Printf("  %-18s -\n", theme)
			continue
		}
		fmt.Printf("  %-18s", theme)
		for i, v := range values {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Print(v)
		}
		fmt.Println()
	}
}
