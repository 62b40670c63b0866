package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
)

// Searcher is the part of indexer.Engine the handler needs.
type Searcher interface {
	Search(term string) []string
	Document(id int) (index.Document, bool)
	Stats() index.Stats
	Generation() uint64
}

// SearchResult is the JSON body of a search response.
type SearchResult struct {
	Query     string   `json:"query"`
	TotalHits int      `json:"total_hits"`
	Results   []string `json:"results"`
	CacheHit  bool     `json:"cache_hit"`
}

type Handler struct {
	engine  Searcher
	cache   *cache.QueryCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a search handler. queryCache and m may be nil.
func New(engine Searcher, queryCache *cache.QueryCache, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:  engine,
		cache:   queryCache,
		metrics: m,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?q=term. The term is looked up as a single
// literal key; no match is a 200 with an empty result list.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	term := r.URL.Query().Get("q")
	if term == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	var results []string
	cacheHit := false
	if h.cache != nil {
		generation := h.engine.Generation()
		results, cacheHit = h.cache.GetOrCompute(ctx, term, generation, func() []string {
			return h.engine.Search(term)
		})
	} else {
		results = h.engine.Search(term)
	}
	if results == nil {
		results = []string{}
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		status := "disabled"
		switch {
		case h.cache != nil && cacheHit:
			status = "hit"
		case h.cache != nil:
			status = "miss"
		}
		h.metrics.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
	}
	log.Info("search completed",
		"query", term,
		"total_hits", len(results),
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, &SearchResult{
		Query:     term,
		TotalHits: len(results),
		Results:   results,
		CacheHit:  cacheHit,
	})
}

// Document serves GET /api/v1/documents/{id} with the stored original text.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		h.writeError(w, http.StatusBadRequest, "document id must be a non-negative integer")
		return
	}
	doc, ok := h.engine.Document(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("document %d not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"id":      doc.ID,
		"content": doc.Content,
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"stats":      h.engine.Stats(),
		"generation": h.engine.Generation(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
