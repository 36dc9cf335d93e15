package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "callisto",
	Short: "Callisto - resilience gateway for generative AI APIs",
	Long: `Callisto is a resilience and observability layer between application
code and a rate-limited remote generative AI API.

It provides:
  - Encrypted credential vault and rotating key pool
  - Bounded TTL response caching
  - Retry with exponential backoff and attempt timeouts
  - Persistent call records with payload sanitization
  - Rolling-window usage metrics and threshold alerting`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
