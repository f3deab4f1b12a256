package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/podseek/internal/cli"
	"github.com/cloo-solutions/podseek/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "podseekd",
		Short: "Podseek daemon and admin CLI",
		Long:  "Podseek daemon for running the search API and managing episodes, the index and the result cache",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.EpisodeCmd())
	rootCmd.AddCommand(admin.IndexCmd())
	rootCmd.AddCommand(admin.CacheCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
