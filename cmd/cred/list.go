package cred

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stephnangue/appcred/cmd/helpers"
	"github.com/stephnangue/appcred/credential"
)

var (
	listUser    string
	listDomain  string
	listProject string
	listName    string
	listSort    string
	listDesc    bool
	listLimit   int
	listFormat  string

	ListCmd = &cobra.Command{
		Use:           "list",
		Short:         "List the application credentials of a user",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runList,
	}
)

func init() {
	ListCmd.Flags().StringVar(&listUser, "user", "", "Owner user id or name (required)")
	ListCmd.Flags().StringVar(&listDomain, "domain", "", "Domain name used to resolve --user by name")
	ListCmd.Flags().StringVar(&listProject, "project", "", "Only credentials on this project")
	ListCmd.Flags().StringVar(&listName, "name", "", "Only the credential with this name")
	ListCmd.Flags().StringVar(&listSort, "sort", "name", "Sort key (name, id or expires_at)")
	ListCmd.Flags().BoolVar(&listDesc, "desc", false, "Sort in descending order")
	ListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of results (0 = all)")
	ListCmd.Flags().StringVar(&listFormat, "format", "table", "Output format (table or json)")

	ListCmd.MarkFlagRequired("user")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	switch listSort {
	case "name", "id", "expires_at":
	default:
		return fmt.Errorf("invalid sort key %q", listSort)
	}

	sys, err := helpers.Open(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	user, err := helpers.ResolveUser(ctx, sys.Identity, listUser, listDomain)
	if err != nil {
		return fmt.Errorf("error resolving user: %w", err)
	}

	hints := &credential.Hints{SortKey: listSort, SortDesc: listDesc, Limit: listLimit}
	if listProject != "" {
		hints = hints.Filter("project_id", listProject)
	}
	if listName != "" {
		hints = hints.Filter("name", listName)
	}

	views, err := sys.Credentials.List(ctx, user.ID, hints)
	if err != nil {
		return fmt.Errorf("error listing application credentials: %w", err)
	}

	out := cmd.OutOrStdout()
	if listFormat == "json" {
		return helpers.PrintJSON(out, views)
	}
	if len(views) == 0 {
		fmt.Fprintln(out, "No application credentials found.")
		return nil
	}

	data := make([][]any, 0, len(views))
	for _, v := range views {
		expires := "never"
		if v.ExpiresAt != nil {
			expires = v.ExpiresAt.UTC().Format(time.RFC3339)
		}
		data = append(data, []any{v.ID, v.Name, v.ProjectID, len(v.Roles), expires})
	}
	helpers.PrintTable(out, []string{"ID", "Name", "Project", "Roles", "Expires At"}, data)
	if hints.Truncated {
		fmt.Fprintf(out, "\nOnly the first %d results are shown.\n", listLimit)
	}
	return nil
}
