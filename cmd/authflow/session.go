package main

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authflow"
)

// NewWhoamiCmd creates the whoami subcommand.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Long: `Show the identity held by the session store. Sessions only outlive a
single command with --store redis.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.client.CurrentSession(cmd.Context())
			if errors.Is(err, authflow.ErrNoSession) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err != nil {
				return oops.Code("SESSION_FAILED").With("operation", "load session").Wrap(err)
			}
			printSession(cmd, s)
			fmt.Fprintf(cmd.OutOrStdout(), "  landing: %s\n", a.client.DestinationFor(s.Identity.Role))
			return nil
		},
	}
}

// NewLogoutCmd creates the logout subcommand.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.client.Logout(cmd.Context()); err != nil {
				return oops.Code("SESSION_FAILED").With("operation", "clear session").Wrap(err)
			}
			return nil
		},
	}
}
