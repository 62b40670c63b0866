package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *mapStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *mapStore) FlushByPattern(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = make(map[string]string)
	return n, nil
}

func newEngine() *indexer.Engine {
	e := indexer.NewEngine(config.IndexerConfig{Highlight: config.HighlightConfig{Preset: "html"}}, nil)
	e.IndexDocument(1, "Rust is safe and fast.")
	e.IndexDocument(2, "Rust is a systems programming language.")
	e.IndexDocument(3, "Programming in Rust is fun.")
	return e
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	return mux
}

func search(t *testing.T, mux http.Handler, term string) SearchResult {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q="+url.QueryEscape(term), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var result SearchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	return result
}

func TestSearch(t *testing.T) {
	mux := newMux(New(newEngine(), nil, nil))

	result := search(t, mux, "Programming")
	assert.Equal(t, "Programming", result.Query)
	assert.Equal(t, 2, result.TotalHits)
	assert.Equal(t, []string{
		"Rust is a systems <mark>programming</mark> language.",
		"<mark>Programming</mark> in Rust is fun.",
	}, result.Results)
	assert.False(t, result.CacheHit)
}

func TestSearchNoMatchIsEmptyList(t *testing.T) {
	mux := newMux(New(newEngine(), nil, nil))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=python", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"query":"python","total_hits":0,"results":[],"cache_hit":false}`, rec.Body.String())

	assert.Empty(t, search(t, mux, "Rust is").Results)
}

func TestSearchRequiresQuery(t *testing.T) {
	mux := newMux(New(newEngine(), nil, nil))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchWithCache(t *testing.T) {
	engine := newEngine()
	qc := cache.New(&mapStore{data: make(map[string]string)}, time.Minute, nil)
	mux := newMux(New(engine, qc, nil))

	first := search(t, mux, "rust")
	second := search(t, mux, "RUST")
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	engine.IndexDocument(4, "rust never sleeps")
	third := search(t, mux, "rust")
	assert.False(t, third.CacheHit, "adding a document moves to a new generation")
	assert.Equal(t, 4, third.TotalHits)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	var stats map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 1.0, stats["hits"])
	assert.Equal(t, 2.0, stats["misses"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, search(t, mux, "rust").CacheHit)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	mux := newMux(New(newEngine(), nil, nil))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDocument(t *testing.T) {
	mux := newMux(New(newEngine(), nil, nil))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":2,"content":"Rust is a systems programming language."}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexStats(t *testing.T) {
	mux := newMux(New(newEngine(), nil, nil))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/index/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stats":{"documents":3,"terms":11,"postings":16},"generation":3}`, rec.Body.String())
}
