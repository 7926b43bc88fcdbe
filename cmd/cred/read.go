package cred

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stephnangue/appcred/cmd/helpers"
	"github.com/stephnangue/appcred/credential"
)

var (
	readFormat string

	ReadCmd = &cobra.Command{
		Use:           "read <id>",
		Aliases:       []string{"get"},
		Short:         "Read an application credential",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE:          runRead,
	}
)

func init() {
	ReadCmd.Flags().StringVar(&readFormat, "format", "table", "Output format (table or json)")
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sys, err := helpers.Open(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	view, err := sys.Credentials.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("error reading application credential %s: %w", args[0], err)
	}

	if readFormat == "json" {
		return helpers.PrintJSON(cmd.OutOrStdout(), view)
	}
	printView(cmd.OutOrStdout(), view)
	return nil
}

func printView(w io.Writer, view *credential.View) {
	expires := "never"
	if view.ExpiresAt != nil {
		expires = view.ExpiresAt.UTC().Format(time.RFC3339)
	}
	roles := make([]string, 0, len(view.Roles))
	for _, r := range view.Roles {
		roles = append(roles, r.Name)
	}

	data := [][]any{
		{"ID", view.ID},
		{"Name", view.Name},
		{"Description", view.Description},
		{"User ID", view.UserID},
		{"Project ID", view.ProjectID},
		{"Roles", strings.Join(roles, ", ")},
		{"Expires At", expires},
		{"Unrestricted", view.Unrestricted},
	}
	if view.Secret != "" {
		data = append(data, []any{"Secret", view.Secret})
	}
	helpers.PrintTable(w, []string{"Key", "Value"}, data)
}
