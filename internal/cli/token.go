package cli

import (
	"fmt"
	"time"

	"dispatch_bot_backend/internal/http/router"
	"dispatch_bot_backend/platform/config"
	"dispatch_bot_backend/platform/httpkit"

	"github.com/spf13/cobra"
)

// TokenCmd returns the token command.
func TokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, err := adminToken(cfg.GetJWTAccessSecret(), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "operator name recorded in admin logs")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func adminToken(secret, subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	token, err := httpkit.IssueAccessToken(secret, subject, []string{router.AdminRole}, ttl)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return token, nil
}
