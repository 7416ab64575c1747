/*
Package main is the entry point for the hearth CLI.

hearth talks to a running hearthd daemon over its HTTP API.

Usage:

	hearth [command]

Available Commands:

	trigger     Register, list, and cancel condition/action triggers
	dispatch    Drain and inject fired-action dispatches
	memory      Record, search, and snapshot per-user interaction history
	profile     Inspect and recompute per-user preference profiles
	watch       Live dashboard of pending triggers and daemon health
	reset       Cancel all pending triggers and drain the dispatch queue
	config      Manage hearth configuration files
*/
package main

import (
	"fmt"
	"os"

	"github.com/hearthlabs/hearth/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := cli.NewRootCmd()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
