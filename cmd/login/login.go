package login

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/stephnangue/appcred/auth"
	"github.com/stephnangue/appcred/cmd/helpers"
)

var (
	LoginCmd = &cobra.Command{
		Use:   "login",
		Short: "Resolve an externally authenticated principal to a user",
		Long: `
Usage: appcred login --remote-user=NAME [options]

  Runs the external authentication method selected by external_auth.method
  in the configuration. The upstream layer (for example a web server doing
  Kerberos or client certificates) has already authenticated the caller;
  this command maps the asserted principal to a local user the way the
  method would for a request carrying REMOTE_USER, REMOTE_DOMAIN and
  AUTH_TYPE.

      $ appcred login --remote-user=alice
      $ appcred login --remote-user=alice --remote-domain=Default --auth-type=Negotiate

  Use --method to try another method than the configured one.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          run,
	}

	flagMethod       string
	flagRemoteUser   string
	flagRemoteDomain string
	flagAuthType     string
)

func init() {
	LoginCmd.Flags().StringVar(&flagMethod, "method", "", "External method (external, external-domain or kerberos)")
	LoginCmd.Flags().StringVar(&flagRemoteUser, "remote-user", "", "Principal asserted upstream (required)")
	LoginCmd.Flags().StringVar(&flagRemoteDomain, "remote-domain", "", "Domain name asserted upstream")
	LoginCmd.Flags().StringVar(&flagAuthType, "auth-type", "", "Upstream mechanism, e.g. Negotiate")
	LoginCmd.MarkFlagRequired("remote-user")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sys, err := helpers.Open(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	req := &auth.Request{
		RemoteUser:   flagRemoteUser,
		RemoteDomain: flagRemoteDomain,
		AuthType:     flagAuthType,
	}

	var resp *auth.Response
	if flagMethod != "" {
		method, err := sys.Auth.Get(flagMethod)
		if err != nil {
			return fmt.Errorf("%w (available: %v)", err, sys.Auth.Names())
		}
		resp, err = method.Authenticate(ctx, req)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	} else {
		resp, err = sys.Login(ctx, req)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}

	data := [][]any{{"user_id", resp.UserID()}}
	if bind, ok := resp.Data["bind"].(map[string]string); ok {
		keys := make([]string, 0, len(bind))
		for k := range bind {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			data = append(data, []any{"bind." + k, bind[k]})
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Success! You are now authenticated.")
	fmt.Fprintln(cmd.OutOrStdout())
	helpers.PrintTable(cmd.OutOrStdout(), []string{"Key", "Value"}, data)
	return nil
}
