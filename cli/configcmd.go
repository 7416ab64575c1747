package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hearthlabs/hearth/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage hearth configuration files",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default daemon config to ~/.hearth/hearth.yaml",
		Long: `Write the default daemon configuration file so the knobs are visible and
editable. Honors HEARTH_CONFIG for the destination path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetServerConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultServerConfig()
			if err := config.SaveServerConfig(&cfg, path); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote default config to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
