package role

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stephnangue/appcred/cmd/helpers"
)

var (
	RoleCmd = &cobra.Command{
		Use:   "role",
		Short: "Inspect roles and remove role assignments",
	}

	ListCmd = &cobra.Command{
		Use:           "list",
		Short:         "List the configured roles",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runList,
	}

	unassignUser    string
	unassignGroup   string
	unassignDomain  string
	unassignProject string

	UnassignCmd = &cobra.Command{
		Use:   "unassign <role>",
		Short: "Remove a role assignment",
		Long: `
Removes a role assignment from a user or a group on a project. Every
affected user loses the application credentials it holds on that project.

      $ appcred role unassign member --user alice --project p1
      $ appcred role unassign member --group ops --project p1
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE:          runUnassign,
	}
)

func init() {
	UnassignCmd.Flags().StringVar(&unassignUser, "user", "", "User id or name")
	UnassignCmd.Flags().StringVar(&unassignGroup, "group", "", "Group id")
	UnassignCmd.Flags().StringVar(&unassignDomain, "domain", "", "Domain name used to resolve --user by name")
	UnassignCmd.Flags().StringVar(&unassignProject, "project", "", "Project id (required)")
	UnassignCmd.MarkFlagRequired("project")
	UnassignCmd.MarkFlagsOneRequired("user", "group")
	UnassignCmd.MarkFlagsMutuallyExclusive("user", "group")

	RoleCmd.AddCommand(ListCmd)
	RoleCmd.AddCommand(UnassignCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	sys, err := helpers.Open(cmd.Context())
	if err != nil {
		return err
	}
	defer sys.Close()

	roles := sys.Roles.ListRoles()
	if len(roles) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No roles found.")
		return nil
	}
	data := make([][]any, 0, len(roles))
	for _, r := range roles {
		data = append(data, []any{r.ID, r.Name, r.Description})
	}
	helpers.PrintTable(cmd.OutOrStdout(), []string{"ID", "Name", "Description"}, data)
	return nil
}

func runUnassign(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sys, err := helpers.Open(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	ids, err := helpers.ResolveRoles(ctx, sys.Roles, args[:1])
	if err != nil {
		return err
	}
	roleID := ids[0]

	if unassignGroup != "" {
		if err := sys.Roles.UnassignGroup(ctx, unassignGroup, unassignProject, roleID); err != nil {
			return fmt.Errorf("error removing assignment: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Success! Removed role %s from group %s on project %s.\n", args[0], unassignGroup, unassignProject)
		return nil
	}

	u, err := helpers.ResolveUser(ctx, sys.Identity, unassignUser, unassignDomain)
	if err != nil {
		return fmt.Errorf("error resolving user: %w", err)
	}
	if err := sys.Roles.UnassignUser(ctx, u.ID, unassignProject, roleID); err != nil {
		return fmt.Errorf("error removing assignment: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Success! Removed role %s from user %s on project %s.\n", args[0], u.Name, unassignProject)
	return nil
}
