package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/podseek/internal/api"
	"github.com/cloo-solutions/podseek/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, raw string) (*service.SearchResponse, error)
	Episode(ctx context.Context, id, raw string) (*service.EpisodeDetail, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query string `param:"q" validate:"required,max=512"`
}

type EpisodeRequest struct {
	ID    string `param:"id" validate:"required,max=256"`
	Query string `param:"q" validate:"max=512"`
}

// Search handles GET /search?q=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req := SearchRequest{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if msg := validationMessage(req); msg != "" {
		api.Error(w, http.StatusBadRequest, msg)
		return
	}

	resp, err := h.svc.Search(r.Context(), req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resp)
}

// Episode handles GET /episodes/{id}?q=
func (h *SearchHandler) Episode(w http.ResponseWriter, r *http.Request) {
	req := EpisodeRequest{
		ID:    strings.TrimSpace(chi.URLParam(r, "id")),
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if msg := validationMessage(req); msg != "" {
		api.Error(w, http.StatusBadRequest, msg)
		return
	}

	detail, err := h.svc.Episode(r.Context(), req.ID, req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, detail)
}
