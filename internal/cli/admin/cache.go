package admin

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/podseek/internal/cli/client"
)

const envAdminAPIKey = "PODSEEK_ADMIN_API_KEY"

type invalidateResult struct {
	Removed int    `json:"removed"`
	Scope   string `json:"scope"`
}

func CacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the running server's result cache",
	}

	cmd.AddCommand(CacheInvalidateCmd())

	return cmd
}

func CacheInvalidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate [query]",
		Short: "Drop cached search results",
		Long: `Drops the cached results for one query, or every cached result when no query is given.

Talks to a running server with the admin key from --api-key or PODSEEK_ADMIN_API_KEY.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			apiURL, _ := cmd.Flags().GetString("api-url")
			apiKey, _ := cmd.Flags().GetString("api-key")
			if apiKey == "" {
				apiKey = os.Getenv(envAdminAPIKey)
			}
			if apiKey == "" {
				return fmt.Errorf("admin key not set (use --api-key or %s)", envAdminAPIKey)
			}

			api, err := client.NewAPIClientWithConfig(apiKey, apiURL)
			if err != nil {
				return err
			}

			body := map[string]string{}
			if len(args) == 1 {
				body["query"] = args[0]
			}

			resp, err := api.Post(cmd.Context(), "/admin/cache/invalidate", body)
			if err != nil {
				return fmt.Errorf("failed to invalidate cache: %w", err)
			}

			var result invalidateResult
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if result.Scope == "all" {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached queries\n", result.Removed)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached entries for %q\n", result.Removed, args[0])
			}
			return nil
		},
	}

	cmd.Flags().String("api-url", "http://localhost:8080", "Base URL of the running server")
	cmd.Flags().String("api-key", "", "Admin API key (overrides env)")

	return cmd
}
