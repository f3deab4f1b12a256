package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/podseek/internal/domain"
)

// SyncChannel is the notification channel announcing a completed episode sync
const SyncChannel = "podseek_episodes_synced"

const episodeColumns = `id, title, description, transcript, caption_url, audio_url, published_at, updated_at`

type EpisodeRepository struct {
	db dbtx
}

func NewEpisodeRepository(pool *pgxpool.Pool) *EpisodeRepository {
	return &EpisodeRepository{db: pool}
}

func (r *EpisodeRepository) GetByID(ctx context.Context, id string) (*domain.Episode, error) {
	row := r.db.QueryRow(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = $1`, id)
	e, err := scanEpisode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEpisodeNotFound
		}
		return nil, err
	}
	return e, nil
}

// Upsert inserts the episode or replaces the stored copy with the same id
func (r *EpisodeRepository) Upsert(ctx context.Context, e *domain.Episode) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	if e.PublishedAt.IsZero() {
		e.PublishedAt = e.UpdatedAt
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO episodes (`+episodeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   transcript = EXCLUDED.transcript,
		   caption_url = EXCLUDED.caption_url,
		   audio_url = EXCLUDED.audio_url,
		   published_at = EXCLUDED.published_at,
		   updated_at = EXCLUDED.updated_at`,
		e.ID, e.Title, e.Description, e.Transcript, nullableString(e.CaptionURL), nullableString(e.AudioURL), e.PublishedAt, e.UpdatedAt,
	)
	return err
}

// ListUpdatedAfter returns episodes changed strictly after since, oldest change first
func (r *EpisodeRepository) ListUpdatedAfter(ctx context.Context, since time.Time) ([]*domain.Episode, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE updated_at > $1 ORDER BY updated_at ASC, id ASC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	episodes := []*domain.Episode{}
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// NotifySynced tells every listening process that episode data changed
func (r *EpisodeRepository) NotifySynced(ctx context.Context, payload string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_notify($1, $2)`, SyncChannel, payload)
	return err
}

func scanEpisode(row pgx.Row) (*domain.Episode, error) {
	var e domain.Episode
	var captionURL, audioURL *string
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Transcript, &captionURL, &audioURL, &e.PublishedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if captionURL != nil {
		e.CaptionURL = *captionURL
	}
	if audioURL != nil {
		e.AudioURL = *audioURL
	}
	return &e, nil
}
