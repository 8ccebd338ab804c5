package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Confide CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confide",
		Short: "Confide - a place to keep one secret",
		Long: `Confide is a small web application where each account stores a
single secret string behind local or Google sign-in.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
