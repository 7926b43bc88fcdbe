package cred

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stephnangue/appcred/cmd/helpers"
)

var (
	deleteForce     bool
	deleteInitiator string

	DeleteCmd = &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete an application credential",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE:          runDelete,
	}
)

func init() {
	DeleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
	DeleteCmd.Flags().StringVar(&deleteInitiator, "initiator", defaultInitiator(), "Initiator recorded in the audit log")
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	out := cmd.OutOrStdout()

	if !deleteForce {
		fmt.Fprintf(out, "WARNING: This will permanently delete application credential '%s'\n", id)
		fmt.Fprint(out, "Are you sure? (yes/no): ")
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)

		if response != "yes" && response != "y" {
			fmt.Fprintln(out, "Deletion cancelled.")
			return nil
		}
	}

	ctx := cmd.Context()
	sys, err := helpers.Open(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := sys.Credentials.Delete(ctx, id, deleteInitiator); err != nil {
		return fmt.Errorf("error deleting application credential: %w", err)
	}

	fmt.Fprintf(out, "Success! Deleted application credential: %s\n", id)
	return nil
}
