// Package cli implements the hearth command tree. Every command talks to a
// running hearthd daemon through the HTTP client.
package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hearthlabs/hearth/client"
	"github.com/hearthlabs/hearth/config"
	hearthlogger "github.com/hearthlabs/hearth/logger"
)

// options carries the global flags shared by every subcommand.
type options struct {
	addr    string
	timeout int
	logFile string
	pretty  bool
}

// NewRootCmd assembles the hearth command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "hearth",
		Short: "Talk to the hearthd smart-home trigger daemon",
		Long: `hearth is the client for hearthd, the deferred-command daemon.

Register triggers that fire when device state changes, drain the queue of
fired actions, and manage per-user memory and preference profiles.`,
		Example: `  # Fire when the fridge door opens
  hearth trigger add --owner amal --device "fridge door" --attribute state --to open \
      --action '{"command":"turn on the dining room light"}'

  # See what is waiting
  hearth trigger list

  # Live dashboard
  hearth watch`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "", "daemon address (default from client config)")
	cmd.PersistentFlags().IntVar(&opts.timeout, "timeout", 0, "request timeout in seconds")
	cmd.PersistentFlags().StringVar(&opts.logFile, "logfile", "", "path to log file (default: no logging)")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "pretty console log output")

	cmd.AddCommand(
		newTriggerCmd(opts),
		newDispatchCmd(opts),
		newMemoryCmd(opts),
		newProfileCmd(opts),
		newWatchCmd(opts),
		newResetCmd(opts),
		newConfigCmd(),
	)

	return cmd
}

// client builds the daemon client, letting flags override the config file.
func (o *options) client() (*client.Client, error) {
	cfg, err := config.LoadClientConfig(config.GetClientConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load client configuration: %w", err)
	}

	addr := o.addr
	if addr == "" {
		addr = cfg.Daemon.Addr
	}
	timeout := o.timeout
	if timeout <= 0 {
		timeout = cfg.Daemon.Timeout
	}
	return client.New(addr, time.Duration(timeout)*time.Second), nil
}

// watchInterval resolves the dashboard refresh cadence from the config file.
func (o *options) watchInterval() time.Duration {
	cfg, err := config.LoadClientConfig(config.GetClientConfigPath())
	if err != nil || cfg.WatchInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(cfg.WatchInterval) * time.Second
}

// logger builds the zerolog logger from the global flags. Commands that only
// print to stdout skip this; the watch dashboard wants it.
func (o *options) logger() (zerolog.Logger, error) {
	if o.logFile != "" && o.pretty {
		return zerolog.Logger{}, fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}
	if o.logFile == "" && !o.pretty {
		// No destination asked for, stay quiet.
		return zerolog.Nop(), nil
	}
	return hearthlogger.InitWithOptions(o.logFile, o.pretty)
}
