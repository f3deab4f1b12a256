package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/telemetry"
)

const (
	// MaxRetries is the number of passes an episode may fail before it is skipped
	MaxRetries = 3
)

// EpisodeSource lists changed episodes and announces completed syncs
type EpisodeSource interface {
	ListUpdatedAfter(ctx context.Context, since time.Time) ([]*domain.Episode, error)
	NotifySynced(ctx context.Context, payload string) error
}

// EpisodeIndexer writes an episode into the search index
type EpisodeIndexer interface {
	Put(ctx context.Context, episode *domain.Episode, refresh bool) error
}

// IndexSyncWorker copies changed episodes into the search index. After a pass that
// indexed anything it sends a sync notification so every process drops its result cache.
type IndexSyncWorker struct {
	source   EpisodeSource
	indexer  EpisodeIndexer
	log      logrus.FieldLogger
	since    time.Time
	failures map[string]int
}

// NewIndexSyncWorker creates a worker that starts from the beginning of time
func NewIndexSyncWorker(source EpisodeSource, indexer EpisodeIndexer, log logrus.FieldLogger) *IndexSyncWorker {
	return &IndexSyncWorker{
		source:   source,
		indexer:  indexer,
		log:      log.WithField("job", "index_sync"),
		failures: make(map[string]int),
	}
}

// Watermark is the update time of the last episode handled
func (w *IndexSyncWorker) Watermark() time.Time {
	return w.since
}

// Pending is the number of episodes waiting on a retry
func (w *IndexSyncWorker) Pending() int {
	return len(w.failures)
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexSyncWorker) ProcessJobs(ctx context.Context) error {
	episodes, err := w.source.ListUpdatedAfter(ctx, w.since)
	if err != nil {
		return fmt.Errorf("failed to list changed episodes: %w", err)
	}

	if len(episodes) == 0 {
		return nil
	}

	w.log.WithField("pending", len(episodes)).Info("syncing episodes to index")

	indexed := 0
	for _, e := range episodes {
		if err := w.indexer.Put(ctx, e, false); err != nil {
			if !w.handleFailure(ctx, e, err) {
				// keep the watermark here so the episode is retried next pass
				break
			}
		} else {
			delete(w.failures, e.ID)
			indexed++
		}
		w.since = e.UpdatedAt
	}

	if indexed == 0 {
		return nil
	}

	if err := w.source.NotifySynced(ctx, strconv.Itoa(indexed)); err != nil {
		return fmt.Errorf("failed to notify sync: %w", err)
	}
	w.log.WithField("indexed", indexed).Info("index sync complete")
	return nil
}

// handleFailure reports whether the episode should be skipped
func (w *IndexSyncWorker) handleFailure(ctx context.Context, e *domain.Episode, jobErr error) bool {
	w.failures[e.ID]++
	attempt := w.failures[e.ID]
	entry := w.log.WithError(jobErr).WithFields(logrus.Fields{
		"episode_id": e.ID,
		"attempt":    attempt,
	})

	if attempt >= MaxRetries {
		entry.Error("episode exceeded max retries, skipping")
		telemetry.CaptureError(ctx, fmt.Errorf("index sync skipped episode %s: %w", e.ID, jobErr))
		delete(w.failures, e.ID)
		return true
	}

	entry.Warn("episode will be retried")
	return false
}
