package cred

import (
	"os"

	"github.com/spf13/cobra"
)

var CredCmd = &cobra.Command{
	Use:     "credential",
	Aliases: []string{"cred"},
	Short:   "Manage application credentials",
	Long:    `This command groups subcommands for creating, reading, listing, deleting and verifying application credentials.`,
}

func init() {
	CredCmd.AddCommand(CreateCmd)
	CredCmd.AddCommand(ReadCmd)
	CredCmd.AddCommand(ListCmd)
	CredCmd.AddCommand(DeleteCmd)
	CredCmd.AddCommand(AuthenticateCmd)
}

// defaultInitiator names the operator in audit events when --initiator is
// not given.
func defaultInitiator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}
