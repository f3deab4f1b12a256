package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/service"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, raw string) (*service.SearchResponse, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SearchResponse), args.Error(1)
}

func (m *MockSearchService) Episode(ctx context.Context, id, raw string) (*service.EpisodeDetail, error) {
	args := m.Called(ctx, id, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EpisodeDetail), args.Error(1)
}

func newSearchRouter(svc SearchService) http.Handler {
	h := NewSearchHandler(svc)
	r := chi.NewRouter()
	r.Get("/search", h.Search)
	r.Get("/episodes/{id}", h.Episode)
	return r
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func TestSearchHandler_Search_Success(t *testing.T) {
	svc := new(MockSearchService)
	svc.On("Search", mock.Anything, "rust go").Return(&service.SearchResponse{
		Query: "rust go",
		Results: []service.SearchResult{{
			ID: "ep-1", Title: "Systems", Preview: "<em>rust</em>", Score: 2.5,
			KeywordPreviews: []domain.KeywordPreview{{Keyword: "rust", Fragment: "<em>rust</em>"}},
		}},
	}, nil)

	w := httptest.NewRecorder()
	newSearchRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=+rust+go+", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "rust go", data["query"])
	results := data["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "ep-1", first["id"])
	assert.Equal(t, 2.5, first["score"])
	assert.Len(t, first["keyword_previews"], 1)
	svc.AssertExpectations(t)
}

func TestSearchHandler_Search_EmptyQuery(t *testing.T) {
	svc := new(MockSearchService)

	w := httptest.NewRecorder()
	newSearchRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=%20%20", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "q is required")
	svc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestSearchHandler_Search_TooLong(t *testing.T) {
	svc := new(MockSearchService)

	w := httptest.NewRecorder()
	newSearchRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q="+strings.Repeat("a", 513), nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "at most 512")
}

func TestSearchHandler_Search_IndexErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unavailable", domain.UpstreamError(http.StatusServiceUnavailable, errors.New("red")), http.StatusServiceUnavailable},
		{"forbidden", domain.UpstreamError(http.StatusForbidden, errors.New("no")), http.StatusForbidden},
		{"generic", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSearchService)
			svc.On("Search", mock.Anything, "rust").Return(nil, tt.err)

			w := httptest.NewRecorder()
			newSearchRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=rust", nil))

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestSearchHandler_Episode(t *testing.T) {
	svc := new(MockSearchService)
	svc.On("Episode", mock.Anything, "ep-1", "テスト").Return(&service.EpisodeDetail{
		Episode: &domain.Episode{ID: "ep-1", Title: "Search"},
		Matches: []service.EpisodeMatch{{
			Text:      "検索の<em>テスト</em>",
			Field:     domain.FieldTranscript,
			Timestamp: &domain.TimeRange{StartTime: 5, EndTime: 10},
		}},
		KeywordPreviews: []domain.KeywordPreview{},
	}, nil)

	w := httptest.NewRecorder()
	newSearchRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/episodes/ep-1?q=%E3%83%86%E3%82%B9%E3%83%88", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "ep-1", data["episode"].(map[string]any)["id"])
	matches := data["matches"].([]any)
	require.Len(t, matches, 1)
	ts := matches[0].(map[string]any)["timestamp"].(map[string]any)
	assert.Equal(t, 5.0, ts["start_time"])
	assert.Equal(t, 10.0, ts["end_time"])
}

func TestSearchHandler_Episode_NotFound(t *testing.T) {
	svc := new(MockSearchService)
	svc.On("Episode", mock.Anything, "missing", "").Return(nil, domain.ErrEpisodeNotFound)

	w := httptest.NewRecorder()
	newSearchRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/episodes/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "episode not found")
}
