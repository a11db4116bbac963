package handlers

import (
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/sitelens/internal/audit"
	"github.com/Togather-Foundation/sitelens/internal/reconcile"
)

// CacheHandler exposes the match cache for inspection and reset.
type CacheHandler struct {
	service *reconcile.Service
	audit   *audit.Logger
}

func NewCacheHandler(service *reconcile.Service, auditLogger *audit.Logger) *CacheHandler {
	return &CacheHandler{service: service, audit: auditLogger}
}

type cacheKeysResponse struct {
	Keys []string `json:"keys"`
}

// List handles GET /api/v1/cache.
func (h *CacheHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cacheKeysResponse{Keys: h.service.ListCacheKeys()})
}

// Clear handles DELETE /api/v1/cache.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cleared := len(h.service.ListCacheKeys())
	h.service.ClearCache()
	h.audit.LogFromRequest(r, "cache.clear", "match_cache", "", "success",
		map[string]string{"cleared": strconv.Itoa(cleared)})
	w.WriteHeader(http.StatusNoContent)
}
