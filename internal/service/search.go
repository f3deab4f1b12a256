package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/podseek/internal/cache"
	"github.com/cloo-solutions/podseek/internal/caption"
	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/highlight"
	"github.com/cloo-solutions/podseek/internal/query"
	"github.com/cloo-solutions/podseek/internal/telemetry"
	"github.com/cloo-solutions/podseek/internal/timestamp"
)

const DefaultCaptionTimeout = 10 * time.Second

// IndexHit is one ranked document returned by the search index
type IndexHit struct {
	ID          string
	Score       float64
	Title       string
	Description string
	Transcript  string
	Highlights  map[domain.Field][]string
}

// IndexResult is the index response to one search request
type IndexResult struct {
	Total int
	Hits  []IndexHit
}

// IndexClientInterface executes structured search requests against the full-text index
type IndexClientInterface interface {
	Search(ctx context.Context, req query.Request) (*IndexResult, error)
}

// CaptionFetcherInterface downloads a caption document
type CaptionFetcherInterface interface {
	Fetch(ctx context.Context, location string) (string, error)
}

// EpisodeRepositoryInterface loads persisted episodes
type EpisodeRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Episode, error)
}

// SearchResult is one ranked card in a listing response
type SearchResult struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Preview         string                  `json:"preview"`
	KeywordPreviews []domain.KeywordPreview `json:"keyword_previews,omitempty"`
	Score           float64                 `json:"score"`
}

// SearchResponse is the listing payload. It is what the result cache stores.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// EpisodeMatch is one highlighted fragment in an episode detail view
type EpisodeMatch struct {
	Text      string            `json:"text"`
	Field     domain.Field      `json:"field"`
	Timestamp *domain.TimeRange `json:"timestamp,omitempty"`
}

// EpisodeDetail is the episode body plus the query's matches within it
type EpisodeDetail struct {
	Episode         *domain.Episode         `json:"episode"`
	Matches         []EpisodeMatch          `json:"matches"`
	KeywordPreviews []domain.KeywordPreview `json:"keyword_previews"`
}

// SearchOptions tunes the search pipeline
type SearchOptions struct {
	Query          query.Options
	Correlation    timestamp.Options
	CaptionTimeout time.Duration
}

// SearchService orchestrates query building, the index call, highlight partitioning
// and timestamp correlation around the result cache
type SearchService struct {
	index          IndexClientInterface
	episodes       EpisodeRepositoryInterface
	captions       CaptionFetcherInterface
	cache          *cache.ResultCache
	builder        *query.Builder
	partitioner    *highlight.Partitioner
	correlator     *timestamp.Correlator
	captionTimeout time.Duration
	log            logrus.FieldLogger
}

// NewSearchService creates a new SearchService instance
func NewSearchService(
	index IndexClientInterface,
	episodes EpisodeRepositoryInterface,
	captions CaptionFetcherInterface,
	resultCache *cache.ResultCache,
	log logrus.FieldLogger,
	opts SearchOptions,
) *SearchService {
	if opts.CaptionTimeout <= 0 {
		opts.CaptionTimeout = DefaultCaptionTimeout
	}
	return &SearchService{
		index:          index,
		episodes:       episodes,
		captions:       captions,
		cache:          resultCache,
		builder:        query.NewBuilder(opts.Query),
		partitioner:    highlight.NewPartitioner(),
		correlator:     timestamp.NewCorrelator(opts.Correlation),
		captionTimeout: opts.CaptionTimeout,
		log:            log,
	}
}

// Search runs a listing query. Results keep the index's ranking.
func (s *SearchService) Search(ctx context.Context, raw string) (*SearchResponse, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.ErrEmptyQuery
	}
	// quotes alone leave nothing to match; an empty bool query would match every episode
	q := s.builder.Build(raw)
	terms := q.Terms()
	if len(terms) == 0 {
		return nil, domain.ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Query:     raw,
		Operation: "search",
	})
	defer span.End()

	if cached, ok := s.cachedResponse(raw); ok {
		return cached, nil
	}

	gen := s.cache.Generation()
	res, err := s.index.Search(ctx, s.builder.ToRequest(q))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results := make([]SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, s.assemble(hit, terms))
	}
	resp := &SearchResponse{Query: raw, Results: results}

	data, err := json.Marshal(resp)
	if err != nil {
		s.log.WithError(err).Warn("search: result not cached")
		return resp, nil
	}
	if !s.cache.SetIfGeneration(raw, gen, data) {
		s.log.WithField("query", raw).Debug("search: cache invalidated during request, result not cached")
	}
	return resp, nil
}

func (s *SearchService) cachedResponse(raw string) (*SearchResponse, bool) {
	data, ok := s.cache.Get(raw)
	if !ok {
		return nil, false
	}
	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		s.log.WithError(err).WithField("query", raw).Warn("search: discarding corrupt cache entry")
		s.cache.Invalidate(raw)
		return nil, false
	}
	return &resp, true
}

func (s *SearchService) assemble(hit IndexHit, terms []domain.Term) SearchResult {
	fragments := hitFragments(hit)
	source := highlight.Source{Transcript: hit.Transcript, Description: hit.Description}
	previews := s.partitioner.Partition(fragments, terms, source)

	result := SearchResult{
		ID:      hit.ID,
		Title:   hit.Title,
		Preview: highlight.CardPreview(previews, terms, fragments, source),
		Score:   hit.Score,
	}
	if len(previews) > 0 {
		result.KeywordPreviews = previews
	}
	return result
}

// Episode loads one episode. With a non-empty query it also returns the query's
// matches in that episode, timestamped against the episode's captions when possible.
func (s *SearchService) Episode(ctx context.Context, id, raw string) (*EpisodeDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidEpisodeID
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Episode", telemetry.SpanAttributes{
		EpisodeID: id,
		Query:     raw,
		Operation: "episode",
	})
	defer span.End()

	episode, err := s.episodes.GetByID(ctx, id)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	detail := &EpisodeDetail{
		Episode:         episode,
		Matches:         []EpisodeMatch{},
		KeywordPreviews: []domain.KeywordPreview{},
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return detail, nil
	}
	q := s.builder.Build(raw)
	if len(q.Terms()) == 0 {
		return nil, domain.ErrEmptyQuery
	}

	segments := s.loadSegments(ctx, episode)

	res, err := s.index.Search(ctx, query.ScopeToEpisode(s.builder.ToRequest(q), episode.ID))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	var hit *IndexHit
	for i := range res.Hits {
		if res.Hits[i].ID == episode.ID {
			hit = &res.Hits[i]
			break
		}
	}
	if hit == nil {
		return detail, nil
	}

	for _, field := range []domain.Field{domain.FieldTranscript, domain.FieldDescription} {
		texts := hit.Highlights[field]
		for i, text := range texts {
			match := EpisodeMatch{Text: text, Field: field}
			if field == domain.FieldTranscript {
				match.Timestamp = s.correlate(text, segments, &timestamp.Hint{Index: i, Total: len(texts)})
			}
			detail.Matches = append(detail.Matches, match)
		}
	}

	source := highlight.Source{Transcript: episode.Transcript, Description: episode.Description}
	previews := s.partitioner.Partition(hitFragments(*hit), q.Terms(), source)
	for i := range previews {
		previews[i].Timestamp = s.correlate(previews[i].Fragment, segments, nil)
	}
	detail.KeywordPreviews = previews

	return detail, nil
}

func (s *SearchService) correlate(fragment string, segments []domain.CaptionSegment, hint *timestamp.Hint) *domain.TimeRange {
	if len(segments) == 0 {
		return nil
	}
	r, ok := s.correlator.Correlate(fragment, segments, hint)
	if !ok {
		return nil
	}
	return &r
}

// loadSegments never fails: a missing or unreachable caption document yields no segments
func (s *SearchService) loadSegments(ctx context.Context, episode *domain.Episode) []domain.CaptionSegment {
	if !episode.HasCaptions() || s.captions == nil {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.captionTimeout)
	defer cancel()

	document, err := s.captions.Fetch(fetchCtx, episode.CaptionURL)
	if err != nil {
		entry := s.log.WithError(err).WithField("episode_id", episode.ID)
		if errors.Is(err, context.DeadlineExceeded) {
			entry.Warn("captions: fetch timed out, continuing without timestamps")
		} else {
			entry.Warn("captions: fetch failed, continuing without timestamps")
		}
		return nil
	}
	return caption.Parse(document)
}

// InvalidateCache drops the given queries, or everything when none are given
func (s *SearchService) InvalidateCache(ctx context.Context, queries ...string) int {
	removed := s.cache.Invalidate(queries...)
	telemetry.AddBreadcrumb(ctx, "cache", "result cache invalidated")
	s.log.WithFields(logrus.Fields{
		"queries": len(queries),
		"removed": removed,
	}).Info("cache: invalidated")
	return removed
}

func hitFragments(hit IndexHit) []domain.HighlightFragment {
	var fragments []domain.HighlightFragment
	for _, field := range []domain.Field{domain.FieldTranscript, domain.FieldDescription} {
		for i, text := range hit.Highlights[field] {
			fragments = append(fragments, domain.HighlightFragment{Text: text, Field: field, SourceIndex: i})
		}
	}
	return fragments
}
