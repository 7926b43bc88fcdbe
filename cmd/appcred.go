package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stephnangue/appcred/cmd/cred"
	"github.com/stephnangue/appcred/cmd/helpers"
	"github.com/stephnangue/appcred/cmd/login"
	"github.com/stephnangue/appcred/cmd/role"
	"github.com/stephnangue/appcred/cmd/user"
)

var (
	appcredCmd = &cobra.Command{
		Use:   "appcred",
		Short: "appcred manages application credentials",
		Long: `appcred issues and revokes application credentials: secrets bound to a user
and a project, scoped to a subset of the user's roles, for automated clients.
Credentials are revoked when their owner is deleted or disabled, or loses a
role assignment on the project.`,
	}
)

func Execute() {
	if err := appcredCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	appcredCmd.PersistentFlags().StringVarP(&helpers.ConfigPath, "config", "c", "", "Path to the HCL configuration (can also use "+helpers.EnvConfig+" env var)")

	appcredCmd.AddCommand(cred.CredCmd)
	appcredCmd.AddCommand(user.UserCmd)
	appcredCmd.AddCommand(role.RoleCmd)
	appcredCmd.AddCommand(login.LoginCmd)
}
