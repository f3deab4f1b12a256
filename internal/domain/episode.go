package domain

import (
	"strings"
	"time"
)

// Episode represents a spoken-word episode known to the system
type Episode struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Transcript  string    `json:"transcript"`
	CaptionURL  string    `json:"caption_url,omitempty"`
	AudioURL    string    `json:"audio_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasCaptions reports whether the episode points at a caption document
func (e *Episode) HasCaptions() bool {
	return strings.TrimSpace(e.CaptionURL) != ""
}

// Validate checks the fields required to persist an episode
func (e *Episode) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "episode id is required", ErrMissingRequiredField)
	}
	if strings.TrimSpace(e.Title) == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "episode title is required", ErrMissingRequiredField)
	}
	return nil
}
