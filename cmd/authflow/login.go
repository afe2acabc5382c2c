package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authflow"
)

type loginConfig struct {
	username string
	password string
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd() *cobra.Command {
	cfg := &loginConfig{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a username and password",
		Long: `Sign in with a username and password. Missing values are read from
standard input. On success the session is stored and the landing route for
the user's role is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&cfg.password, "password", "p", "", "password")

	return cmd
}

func runLogin(cmd *cobra.Command, _ []string, cfg *loginConfig) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	username := cfg.username
	if username == "" {
		username = prompt(cmd, in, "Username: ")
	}
	password := cfg.password
	if password == "" {
		password = prompt(cmd, in, "Password: ")
	}

	ctrl := a.client.NewLoginController()
	defer ctrl.Dispose()

	out := ctrl.SubmitLogin(cmd.Context(), username, password)
	if !out.OK() {
		return failureError("LOGIN_FAILED", out.Failure())
	}

	printSession(cmd, out.Value().Session)
	return nil
}

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) string {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, _ := in.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func printSession(cmd *cobra.Command, s authflow.Session) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Signed in as %s (%s)\n", s.Identity.DisplayName(), s.Identity.Role)
	fmt.Fprintf(w, "  user:    %s\n", s.Identity.Username)
	fmt.Fprintf(w, "  email:   %s\n", s.Identity.Email)
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "  expires: %s\n", s.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}
}
