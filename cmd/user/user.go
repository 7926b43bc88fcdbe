package user

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stephnangue/appcred/cmd/helpers"
)

var (
	flagDomain string

	UserCmd = &cobra.Command{
		Use:   "user",
		Short: "Change the lifecycle of configured users",
		Long: `
Deleting or disabling a user revokes every application credential the user
owns. Users come from the seed blocks of the configuration, so a deleted
user reappears on the next run until it is removed there too; the revoked
credentials stay revoked.
`,
	}

	DeleteCmd = &cobra.Command{
		Use:           "delete <user>",
		Short:         "Delete a user and revoke its application credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE:          runDelete,
	}

	DisableCmd = &cobra.Command{
		Use:           "disable <user>",
		Short:         "Disable a user and revoke its application credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE:          runDisable,
	}
)

func init() {
	UserCmd.PersistentFlags().StringVar(&flagDomain, "domain", "", "Domain name used to resolve the user by name")

	UserCmd.AddCommand(DeleteCmd)
	UserCmd.AddCommand(DisableCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sys, err := helpers.Open(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	u, err := helpers.ResolveUser(ctx, sys.Identity, args[0], flagDomain)
	if err != nil {
		return fmt.Errorf("error resolving user: %w", err)
	}
	if err := sys.Identity.DeleteUser(ctx, u.ID); err != nil {
		return fmt.Errorf("error deleting user %s: %w", u.Name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Success! Deleted user %s (%s) and revoked its application credentials.\n", u.Name, u.ID)
	return nil
}

func runDisable(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sys, err := helpers.Open(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	u, err := helpers.ResolveUser(ctx, sys.Identity, args[0], flagDomain)
	if err != nil {
		return fmt.Errorf("error resolving user: %w", err)
	}
	if err := sys.Identity.DisableUser(ctx, u.ID); err != nil {
		return fmt.Errorf("error disabling user %s: %w", u.Name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Success! Disabled user %s (%s) and revoked its application credentials.\n", u.Name, u.ID)
	return nil
}
