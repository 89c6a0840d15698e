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
	Use:   "aegis",
	Short: "Aegis - semantic policy enforcement for autonomous agents",
	Long: `Aegis is a policy enforcement service that decides whether autonomous
agents may take the actions they intend to take.

Agent intents arrive as 128-dimensional semantic vectors and are scored
against installed policy rules by cosine similarity. Rules are stored in
three tiers: an in-memory cache for the hot path, a binary snapshot file
for fast restart, and a SQLite database as the durable source of truth.

Every failure mode fails closed: a missing vector, a missing rule, or an
empty layer all produce a block decision.`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
