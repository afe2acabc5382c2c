package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authflow"
)

type resetConfig struct {
	email string
}

// NewResetCmd creates the reset subcommand.
func NewResetCmd() *cobra.Command {
	cfg := &resetConfig{}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Request a password reset and verify the emailed code",
		Long: `Request a password reset code for an email address, then enter the
code at the prompt. Type "resend" to request a new code once the cooldown
has elapsed, or "quit" to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.email, "email", "e", "", "account email")

	return cmd
}

func runReset(cmd *cobra.Command, _ []string, cfg *resetConfig) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	email := cfg.email
	if email == "" {
		email = prompt(cmd, in, "Email: ")
	}

	requester := a.client.NewResetRequester()
	defer requester.Dispose()

	res := requester.RequestReset(cmd.Context(), email)
	if !res.OK() {
		return failureError("RESET_FAILED", res.Failure())
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Value().Message)

	_, state := a.nav.Last()
	otp, err := a.client.EnterOTPStepFromState(state)
	if err != nil {
		return oops.Code("OTP_STEP_FAILED").Wrap(err)
	}
	defer otp.Dispose()

	return otpLoop(cmd, in, otp)
}

// otpLoop reads codes and commands until the step is verified, input ends, or
// the user quits.
func otpLoop(cmd *cobra.Command, in *bufio.Reader, otp *authflow.OTPController) error {
	w := cmd.OutOrStdout()
	for {
		fmt.Fprintf(w, "Code for %s (or resend, quit): ", otp.Email())
		line, readErr := in.ReadString('\n')
		line = strings.TrimSpace(line)

		switch strings.ToLower(line) {
		case "":
		case "quit", "q":
			return nil
		case "resend":
			out := otp.Resend(cmd.Context())
			switch out.Status() {
			case authflow.Succeeded:
				fmt.Fprintf(w, "%s. Next resend in %ds.\n", out.Value().Message, out.Value().CooldownSeconds)
			case authflow.Skipped:
				fmt.Fprintf(w, "Resend available in %ds.\n", otp.Cooldown().RemainingSeconds)
			default:
				fmt.Fprintln(w, "Error:", out.Message())
			}
		default:
			out := otp.SubmitCode(cmd.Context(), line)
			switch out.Status() {
			case authflow.Succeeded:
				printSession(cmd, out.Value().Session)
				return nil
			case authflow.Failed:
				fmt.Fprintln(w, "Error:", out.Message())
			}
		}

		if readErr != nil {
			return oops.Code("OTP_NOT_VERIFIED").With("email", otp.Email()).Errorf("input ended before the code was verified")
		}
	}
}
