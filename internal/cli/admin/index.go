package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/podseek/internal/jobs"
	"github.com/cloo-solutions/podseek/internal/repository"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the search index",
	}

	cmd.AddCommand(IndexSyncCmd())

	return cmd
}

func IndexSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy every stored episode into the search index",
		Long: `Creates the index if needed and indexes every stored episode in one pass.

On success a sync notification is sent so running servers drop their result cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}

			pool, err := getDBPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			indexClient, err := newIndexClient(ctx, cfg)
			if err != nil {
				return err
			}

			worker := jobs.NewIndexSyncWorker(repository.NewEpisodeRepository(pool), indexClient, log)
			// failed episodes are retried on the next pass, up to MaxRetries
			for pass := 0; pass < jobs.MaxRetries; pass++ {
				before := worker.Watermark()
				if err := worker.ProcessJobs(ctx); err != nil {
					return fmt.Errorf("index sync failed: %w", err)
				}
				if worker.Pending() == 0 && worker.Watermark().Equal(before) {
					break
				}
			}

			if worker.Watermark().IsZero() {
				fmt.Fprintln(cmd.OutOrStdout(), "No episodes to index")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Index synced up to %s\n", worker.Watermark().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	return cmd
}
