package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Request a sign-in email",
		Long:  "Asks the server to email a sign-in link and a 6-digit code. Redeem the code with the verify command.",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	if err := newAPIClient().RequestMagicLink(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to request sign-in email: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "If %s can sign in, a code is on its way.\n", args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "Run: uploader verify %s <code>\n", args[0])
	return nil
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <email> <code>",
		Short: "Redeem an emailed sign-in code",
		Long:  "Exchanges the 6-digit code for a session token. Pass it with --session or WEDDING_PHOTOS_SESSION.",
		Args:  cobra.ExactArgs(2),
		RunE:  runVerify,
	}
	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	token, err := newAPIClient().VerifyCode(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Signed in. Session token:\n%s\n", token)
	fmt.Fprintf(cmd.OutOrStdout(), "export WEDDING_PHOTOS_SESSION=%s\n", token)
	return nil
}
