package domain

import "strings"

// Field identifies which indexed field a highlight fragment came from
type Field string

const (
	FieldTranscript  Field = "transcript"
	FieldDescription Field = "description"
	FieldTitle       Field = "title"
)

// CaptionSegment is the parsed form of one caption cue. Times are in seconds.
type CaptionSegment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// TimeRange is a playback range in seconds
type TimeRange struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Range returns the playback range covered by the segment
func (s CaptionSegment) Range() TimeRange {
	return TimeRange{StartTime: s.StartTime, EndTime: s.EndTime}
}

// HighlightFragment is one snippet returned by the index for a field.
// SourceIndex is the position within that field's fragment list.
type HighlightFragment struct {
	Text        string `json:"text"`
	Field       Field  `json:"field"`
	SourceIndex int    `json:"source_index"`
}

// Term is one queried unit: either a quoted phrase or a bare keyword
type Term struct {
	Value         string `json:"value"`
	IsExactPhrase bool   `json:"is_exact_phrase"`
}

// KeywordPreview is the isolated evidence for one queried term within one episode
type KeywordPreview struct {
	Keyword   string     `json:"keyword"`
	Fragment  string     `json:"fragment"`
	Timestamp *TimeRange `json:"timestamp,omitempty"`
}

// NormalizeQuery produces the cache key form of a raw query
func NormalizeQuery(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
