package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "netplay-client",
		Short: "Join a netplay session as a client",
		Long: `netplay-client connects to a netplay host, performs the handshake and
keeps a session alive, exposing its state over HTTP for inspection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	root.AddCommand(
		connectCmd(&configPath),
		statusCmd(),
		configCmd(&configPath),
		versionCmd(),
	)
	return root
}
