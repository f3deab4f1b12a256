package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/podseek/internal/caption"
	"github.com/cloo-solutions/podseek/internal/config"
	"github.com/cloo-solutions/podseek/internal/database"
	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/repository"
	"github.com/cloo-solutions/podseek/internal/storage"
)

// EpisodeStore is the part of the episode repository the admin commands write through
type EpisodeStore interface {
	GetByID(ctx context.Context, id string) (*domain.Episode, error)
	Upsert(ctx context.Context, e *domain.Episode) error
}

// ObjectWriter stores caption documents and reports where they live
type ObjectWriter interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
	Location(key string) string
}

func EpisodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "episode",
		Short: "Manage stored episodes",
		Long:  "Import episodes into the store and attach caption documents",
	}

	cmd.AddCommand(EpisodeImportCmd())
	cmd.AddCommand(EpisodeCaptionsCmd())

	return cmd
}

func EpisodeImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import episodes from a JSON array",
		Long: `Upserts every episode in the file. Use "-" to read standard input.

Run "podseekd index sync" afterwards, or let the server's index sync worker pick the changes up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			pool, err := getDBPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			// all or nothing
			var n int
			err = repository.NewTxRunner(pool).WithTx(ctx, func(episodes *repository.EpisodeRepository) error {
				n, err = importEpisodes(ctx, episodes, data)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d episodes\n", n)
			return nil
		},
	}

	return cmd
}

func importEpisodes(ctx context.Context, store EpisodeStore, data []byte) (int, error) {
	var episodes []*domain.Episode
	if err := json.Unmarshal(data, &episodes); err != nil {
		return 0, fmt.Errorf("failed to parse episodes: %w", err)
	}

	for i, e := range episodes {
		if e == nil {
			return i, fmt.Errorf("episode %d is null", i)
		}
		if err := store.Upsert(ctx, e); err != nil {
			return i, fmt.Errorf("failed to import episode %q: %w", e.ID, err)
		}
	}
	return len(episodes), nil
}

func EpisodeCaptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captions <episode-id> <file.vtt>",
		Short: "Upload a caption document for an episode",
		Long:  "Validates the caption file, stores it in the configured S3 bucket and points the episode at it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.S3Bucket == "" {
				return fmt.Errorf("PODSEEK_S3_BUCKET is required to upload captions")
			}

			objects, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
				Endpoint:        cfg.S3Endpoint,
				Region:          cfg.S3Region,
				AccessKeyID:     cfg.S3AccessKey,
				SecretAccessKey: cfg.S3SecretKey,
				Bucket:          cfg.S3Bucket,
				UsePathStyle:    cfg.S3UsePathStyle,
			})
			if err != nil {
				return fmt.Errorf("failed to create S3 client: %w", err)
			}
			if err := objects.EnsureBucket(ctx); err != nil {
				return fmt.Errorf("failed to ensure S3 bucket: %w", err)
			}

			pool, err := getDBPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			location, err := attachCaptions(ctx, repository.NewEpisodeRepository(pool), objects, args[0], data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Captions stored at %s\n", location)
			return nil
		},
	}

	return cmd
}

// attachCaptions stores a caption document and updates the episode's caption url
func attachCaptions(ctx context.Context, store EpisodeStore, objects ObjectWriter, episodeID string, doc []byte) (string, error) {
	segments := caption.Parse(string(doc))
	if len(segments) == 0 {
		return "", fmt.Errorf("caption document has no cues")
	}

	episode, err := store.GetByID(ctx, episodeID)
	if err != nil {
		return "", fmt.Errorf("failed to load episode: %w", err)
	}

	key := filepath.ToSlash(filepath.Join("captions", episodeID+".vtt"))
	if err := objects.PutObject(ctx, key, "text/vtt", doc); err != nil {
		return "", err
	}

	episode.CaptionURL = objects.Location(key)
	episode.UpdatedAt = time.Now().UTC()
	if err := store.Upsert(ctx, episode); err != nil {
		return "", fmt.Errorf("failed to update episode: %w", err)
	}
	return episode.CaptionURL, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}
