//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/testutil"
)

func TestEpisodeRepository(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEpisodeRepository(pool)

	t.Run("upsert then get", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		e := &domain.Episode{
			ID:          "ep-1",
			Title:       "First",
			Description: "desc",
			Transcript:  "hello",
			CaptionURL:  "s3://captions/ep-1.vtt",
			PublishedAt: published,
		}
		require.NoError(t, repo.Upsert(ctx, e))

		got, err := repo.GetByID(ctx, "ep-1")
		require.NoError(t, err)
		assert.Equal(t, "First", got.Title)
		assert.Equal(t, "s3://captions/ep-1.vtt", got.CaptionURL)
		assert.Empty(t, got.AudioURL)
		assert.True(t, published.Equal(got.PublishedAt))

		e.Title = "Renamed"
		e.UpdatedAt = e.UpdatedAt.Add(time.Minute)
		require.NoError(t, repo.Upsert(ctx, e))

		got, err = repo.GetByID(ctx, "ep-1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
	})

	t.Run("missing episode", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrEpisodeNotFound)
	})

	t.Run("rejects invalid episode", func(t *testing.T) {
		err := repo.Upsert(ctx, &domain.Episode{ID: "ep-x"})
		assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))
	})

	t.Run("list updated after", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		for i, id := range []string{"a", "b", "c"} {
			require.NoError(t, repo.Upsert(ctx, &domain.Episode{
				ID: id, Title: id, UpdatedAt: base.Add(time.Duration(i) * time.Hour),
			}))
		}

		got, err := repo.ListUpdatedAfter(ctx, base)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "b", got[0].ID)
		assert.Equal(t, "c", got[1].ID)
	})

	t.Run("notify synced reaches listeners", func(t *testing.T) {
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Release()

		_, err = conn.Exec(ctx, "LISTEN "+SyncChannel)
		require.NoError(t, err)

		require.NoError(t, repo.NotifySynced(ctx, "3"))

		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		n, err := conn.Conn().WaitForNotification(waitCtx)
		require.NoError(t, err)
		assert.Equal(t, SyncChannel, n.Channel)
		assert.Equal(t, "3", n.Payload)
	})

	t.Run("transaction rolls back every write", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		runner := NewTxRunner(pool)

		err := runner.WithTx(ctx, func(episodes *EpisodeRepository) error {
			require.NoError(t, episodes.Upsert(ctx, &domain.Episode{ID: "tx-1", Title: "kept?"}))
			return episodes.Upsert(ctx, &domain.Episode{ID: "tx-2"})
		})
		assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))

		_, err = repo.GetByID(ctx, "tx-1")
		assert.ErrorIs(t, err, domain.ErrEpisodeNotFound)

		require.NoError(t, runner.WithTx(ctx, func(episodes *EpisodeRepository) error {
			return episodes.Upsert(ctx, &domain.Episode{ID: "tx-1", Title: "committed"})
		}))
		got, err := repo.GetByID(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, "committed", got.Title)
	})
}
