package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/boardsync-core/internal/auth"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/config"
)

// tokenCmd mints a bearer token for the REST API. Tokens are stateless, so
// anyone holding the configured secret can issue them; there is no user store.
func tokenCmd(configPath *string) *cobra.Command {
	var (
		role    string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token",
		Long: `Mint an HS256 bearer token for the REST API, signed with security.jwt.secret.

Roles:
  viewer    list boards, diff, read the catalog and sync history
  operator  everything a viewer can do, plus rescan, sync and catalog refresh`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
			}

			token, err := auth.GenerateToken(subject, auth.Role(role), cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", string(auth.RoleViewer), "token role (viewer or operator)")
	cmd.Flags().StringVarP(&subject, "subject", "s", "boardsync-cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl)")
	return cmd
}
