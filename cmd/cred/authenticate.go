package cred

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stephnangue/appcred/cmd/helpers"
)

var (
	authSecret string

	AuthenticateCmd = &cobra.Command{
		Use:   "authenticate <id>",
		Short: "Verify an application credential secret",
		Long: `
Checks --secret against the stored credential. Unknown, expired and
mismatched credentials are all reported the same way.

      $ appcred credential authenticate 3f2a... --secret=@./ci.secret
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE:          runAuthenticate,
	}
)

func init() {
	AuthenticateCmd.Flags().StringVar(&authSecret, "secret", "", "Secret to verify, or @file (required)")
	AuthenticateCmd.MarkFlagRequired("secret")
}

func runAuthenticate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	secret, err := helpers.ResolveFileRef(authSecret)
	if err != nil {
		return err
	}

	sys, err := helpers.Open(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := sys.Credentials.Authenticate(ctx, args[0], secret); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Success! Application credential %s is valid.\n", args[0])
	return nil
}
