package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weppcloud/queryengine/internal/auth"
)

// NewTokenCommand creates the token command.
func NewTokenCommand() *cobra.Command {
	var claims auth.Claims

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an MCP bearer token",
		Long: `Sign a token with WEPP_MCP_JWT_SECRET for local testing of the MCP API.
Audience and issuer default to the configured verification values.`,
		Example: `  WEPP_MCP_JWT_SECRET=dev wepp-query token --sub agent \
    --scope runs:read --scope queries:execute --run copacetic-note`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := auth.LoadConfig()
			if err != nil {
				return err
			}
			tok, err := cfg.Sign(claims, time.Now())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&claims.Subject, "sub", "", "Token subject")
	cmd.Flags().StringSliceVar(&claims.Scopes, "scope", nil, "Granted scope (repeatable)")
	cmd.Flags().StringSliceVar(&claims.Runs, "run", nil, "Accessible run id (repeatable)")
	cmd.Flags().DurationVar(&claims.TTL, "ttl", time.Hour, "Lifetime; 0 omits exp")
	cmd.Flags().StringVar(&claims.Audience, "audience", "", "Audience claim")
	cmd.Flags().StringVar(&claims.Issuer, "issuer", "", "Issuer claim")
	_ = cmd.MarkFlagRequired("sub")

	return cmd
}
