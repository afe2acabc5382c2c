package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authflow CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authflow",
		Short: "authflow - sign in, reset passwords and verify codes against an auth API",
		Long: `authflow drives the login, password reset and one-time code flows
against an auth API and keeps the resulting session for later commands.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	registerClientFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewResetCmd())
	cmd.AddCommand(NewWhoamiCmd())
	cmd.AddCommand(NewLogoutCmd())
	cmd.AddCommand(NewFakeBackendCmd())

	return cmd
}
