package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cloo-solutions/podseek/internal/api"
)

type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, queries ...string) int
}

type AdminHandler struct {
	cache CacheInvalidator
}

func NewAdminHandler(cache CacheInvalidator) *AdminHandler {
	return &AdminHandler{cache: cache}
}

// InvalidateCacheRequest clears one query, or the whole cache when Query is empty
type InvalidateCacheRequest struct {
	Query string `json:"query" validate:"max=512"`
}

type InvalidateCacheResponse struct {
	Removed int    `json:"removed"`
	Scope   string `json:"scope"`
}

// InvalidateCache handles POST /admin/cache/invalidate. An empty body clears everything.
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req InvalidateCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validationMessage(req); msg != "" {
		api.Error(w, http.StatusBadRequest, msg)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		api.Success(w, http.StatusOK, InvalidateCacheResponse{
			Removed: h.cache.InvalidateCache(r.Context()),
			Scope:   "all",
		})
		return
	}

	api.Success(w, http.StatusOK, InvalidateCacheResponse{
		Removed: h.cache.InvalidateCache(r.Context(), query),
		Scope:   "query",
	})
}
