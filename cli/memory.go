package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newMemoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Record, search, and snapshot per-user interaction history",
	}
	cmd.AddCommand(
		newMemoryAddCmd(opts),
		newMemoryIndexCmd(opts),
		newMemorySearchCmd(opts),
		newMemoryContainsCmd(opts),
		newMemorySnapshotCmd(opts),
		newMemoryRestoreCmd(opts),
	)
	return cmd
}

func newMemoryAddCmd(opts *options) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "add <user> <instruction...>",
		Short: "Append an instruction to a user's history",
		Args:  cobra.MinimumNArgs(2),
		Example: `  hearth memory add amal "I want to watch the Wimbledon final this weekend"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			instruction := strings.Join(args[1:], " ")

			var ts time.Time
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at timestamp (want RFC3339): %w", err)
				}
				ts = parsed
			}

			cli, err := opts.client()
			if err != nil {
				return err
			}

			ack, err := cli.AddInteraction(cmd.Context(), userID, instruction, ts)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Recorded interaction %d for %s on %s\n", ack.RequestIndex, userID, ack.Date)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "interaction timestamp, RFC3339 (default: now)")
	return cmd
}

func newMemoryIndexCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <user>",
		Short: "Rebuild a user's semantic search index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}

			count, err := cli.BuildIndex(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("✓ Indexed %d records for %s\n", count, args[0])
			return nil
		},
	}
	return cmd
}

func newMemorySearchCmd(opts *options) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <user> <query...>",
		Short: "Search a user's history by meaning",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			query := strings.Join(args[1:], " ")

			cli, err := opts.client()
			if err != nil {
				return err
			}

			results, err := cli.SearchMemory(cmd.Context(), userID, query, topK)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No matches.")
				return nil
			}

			for i, r := range results {
				fmt.Printf("%2d. [%.3f] %s  (%s)\n", i+1, r.Score, r.Record.Instruction, r.Record.Date)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 5, "number of results")
	return cmd
}

func newMemoryContainsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contains <user> <instruction...>",
		Short: "Check whether an exact instruction is in a user's history",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			instruction := strings.Join(args[1:], " ")

			cli, err := opts.client()
			if err != nil {
				return err
			}

			found, err := cli.Contains(cmd.Context(), userID, instruction)
			if err != nil {
				return err
			}
			if found {
				fmt.Println("yes")
			} else {
				fmt.Println("no")
			}
			return nil
		},
	}
	return cmd
}

func newMemorySnapshotCmd(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write the full memory bank to a JSON snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}

			blob, err := cli.ExportMemory(cmd.Context())
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path = fmt.Sprintf("hearth-memory-%s.json", time.Now().Format("20060102-150405"))
			}
			if err := os.WriteFile(path, blob, 0o600); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			fmt.Printf("✓ Wrote %d bytes to %s\n", len(blob), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "snapshot file path (default: hearth-memory-<timestamp>.json)")
	return cmd
}

func newMemoryRestoreCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore the memory bank from a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0]) //#nosec 304 -- intentional file read for restore
			if err != nil {
				return fmt.Errorf("failed to read snapshot: %w", err)
			}

			cli, err := opts.client()
			if err != nil {
				return err
			}

			users, err := cli.ImportMemory(cmd.Context(), blob)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Restored %d user(s) from %s\n", users, args[0])
			return nil
		},
	}
	return cmd
}
