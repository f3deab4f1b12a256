package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/podseek/internal/cli"
	"github.com/cloo-solutions/podseek/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "podseek",
		Short: "Podseek CLI - search podcast episodes",
		Long: `Podseek CLI searches podcast episodes and shows where a query is spoken.

Environment variables:
  PODSEEK_API_URL   API base URL (default: http://localhost:8080)
  PODSEEK_API_KEY   API key sent as a bearer token, if set`,
		Version: version,
	}

	client.AddGlobalFlags(rootCmd)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.EpisodeCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
