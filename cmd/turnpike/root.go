package main

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "turnpike",
	Short: "Multi-tenant conversational gateway",
	Long: `Turnpike dispatches conversation turns to completion providers with
idempotent request handling, retry/fallback reliability, and per-turn
usage metering.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(versionCmd)
}
