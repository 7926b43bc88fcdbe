package cred

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/spf13/cobra"
	"github.com/stephnangue/appcred/cmd/helpers"
	"github.com/stephnangue/appcred/credential"
)

var (
	createUser         string
	createDomain       string
	createProject      string
	createRoles        []string
	createDescription  string
	createExpiresAt    string
	createExpiresIn    string
	createUnrestricted bool
	createSecret       string
	createID           string
	createInitiator    string
	createFormat       string

	CreateCmd = &cobra.Command{
		Use:   "create <name>",
		Short: "Create an application credential",
		Long: `
Creates an application credential owned by --user on --project. The user
must hold every --role on the project, directly or through a group.

The secret is printed once and cannot be read back. Pass --secret to choose
it (use --secret=@/path/to/file to read it from a file); otherwise a random
one is generated.

      $ appcred credential create ci --user alice --project p1 --role member --expires-in 720h
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE:          runCreate,
	}
)

func init() {
	CreateCmd.Flags().StringVar(&createUser, "user", "", "Owner user id or name (required)")
	CreateCmd.Flags().StringVar(&createDomain, "domain", "", "Domain name used to resolve --user by name")
	CreateCmd.Flags().StringVar(&createProject, "project", "", "Project id (required)")
	CreateCmd.Flags().StringSliceVar(&createRoles, "role", nil, "Role id or name, repeatable")
	CreateCmd.Flags().StringVar(&createDescription, "description", "", "Description")
	CreateCmd.Flags().StringVar(&createExpiresAt, "expires-at", "", "Expiry as an RFC 3339 timestamp")
	CreateCmd.Flags().StringVar(&createExpiresIn, "expires-in", "", "Expiry relative to now (e.g. 24h or 86400)")
	CreateCmd.Flags().BoolVar(&createUnrestricted, "unrestricted", false, "Allow the credential to manage other credentials")
	CreateCmd.Flags().StringVar(&createSecret, "secret", "", "Secret to use instead of a generated one")
	CreateCmd.Flags().StringVar(&createID, "id", "", "Credential id to use instead of a generated one")
	CreateCmd.Flags().StringVar(&createInitiator, "initiator", defaultInitiator(), "Initiator recorded in the audit log")
	CreateCmd.Flags().StringVar(&createFormat, "format", "table", "Output format (table or json)")

	CreateCmd.MarkFlagRequired("user")
	CreateCmd.MarkFlagRequired("project")
	CreateCmd.MarkFlagsMutuallyExclusive("expires-at", "expires-in")
}

func parseExpiry(at, in string, now time.Time) (*time.Time, error) {
	switch {
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("invalid expires-at: %w", err)
		}
		return &t, nil
	case in != "":
		d, err := parseutil.ParseDurationSecond(in)
		if err != nil {
			return nil, fmt.Errorf("invalid expires-in: %w", err)
		}
		t := now.Add(d)
		return &t, nil
	}
	return nil, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	expiresAt, err := parseExpiry(createExpiresAt, createExpiresIn, time.Now())
	if err != nil {
		return err
	}
	secret, err := helpers.ResolveFileRef(createSecret)
	if err != nil {
		return err
	}

	sys, err := helpers.Open(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	user, err := helpers.ResolveUser(ctx, sys.Identity, createUser, createDomain)
	if err != nil {
		return fmt.Errorf("error resolving user: %w", err)
	}
	roles, err := helpers.ResolveRoles(ctx, sys.Roles, createRoles)
	if err != nil {
		return err
	}

	view, err := sys.Credentials.Create(ctx, &credential.CreateRequest{
		ID:           createID,
		Name:         args[0],
		Description:  createDescription,
		UserID:       user.ID,
		ProjectID:    createProject,
		ExpiresAt:    expiresAt,
		Unrestricted: createUnrestricted,
		Secret:       secret,
		Roles:        roles,
	}, createInitiator)
	if err != nil {
		return fmt.Errorf("error creating application credential: %w", err)
	}

	out := cmd.OutOrStdout()
	if createFormat == "json" {
		return helpers.PrintJSON(out, view)
	}
	fmt.Fprintf(out, "Success! Created application credential: %s\n\n", view.Name)
	printView(out, view)
	fmt.Fprintln(out, "\nThe secret is shown only once. Store it now.")
	return nil
}
