package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dispatch_bot_backend/internal/admin"
	"dispatch_bot_backend/platform/config"
	"dispatch_bot_backend/platform/httpkit"

	"github.com/spf13/cobra"
)

// SessionCmd returns the session command group.
func SessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and reset live conversations",
	}
	cmd.AddCommand(sessionResetCmd())
	return cmd
}

func sessionResetCmd() *cobra.Command {
	var (
		apiURL string
		token  string
	)

	cmd := &cobra.Command{
		Use:   "reset <phone>",
		Short: "Drop a sender's conversation state through the admin API",
		Long: `Drop a sender's conversation state so their next message starts fresh.

The API server keeps sessions in memory, so the reset goes through its admin
endpoint. Without --token an admin token is minted from JWT_ACCESS_SECRET.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			if token == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if token, err = adminToken(cfg.GetJWTAccessSecret(), "dispatchctl", 5*time.Minute); err != nil {
					return err
				}
			}

			resp, err := resetSession(cmd.Context(), http.DefaultClient, apiURL, token, addr)
			if err != nil {
				return err
			}
			if !resp.Existed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s had no active session\n", warnMark, resp.Sender)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s reset (was %s/%s)\n", okMark, resp.Sender, resp.Flow, resp.State)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "API server base URL")
	cmd.Flags().StringVar(&token, "token", "", "admin bearer token")
	return cmd
}

func resetSession(ctx context.Context, hc *http.Client, apiURL, token, sender string) (admin.ResetResponse, error) {
	var out admin.ResetResponse

	endpoint := strings.TrimRight(apiURL, "/") + "/api/v1/admin/sessions/" + url.PathEscape(sender)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return out, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := hc.Do(req)
	if err != nil {
		return out, fmt.Errorf("reset session: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		var apiErr httpkit.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		return out, fmt.Errorf("reset session: %s: %s", res.Status, apiErr.Error)
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode reset response: %w", err)
	}
	return out, nil
}
