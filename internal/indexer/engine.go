// Package indexer owns the in-memory inverted index for a running service.
// Engine serialises every add and query behind one mutex so that HTTP
// handlers, the Kafka consumer and the bootstrap loader can share it.
package indexer

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/highlight"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
)

type Engine struct {
	mu         sync.Mutex
	index      *index.InvertedIndex
	generation atomic.Uint64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewEngine builds an empty Engine whose results are highlighted according to
// cfg.Highlight. m may be nil.
func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) *Engine {
	marker := ResolveMarker(cfg.Highlight)
	return &Engine{
		index:   index.NewWithHighlighter(highlight.New(marker)),
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// ResolveMarker picks the marker described by cfg: explicit Start/End first,
// then the named preset, then highlight.ANSIPurple.
func ResolveMarker(cfg config.HighlightConfig) highlight.Marker {
	if cfg.Start != "" || cfg.End != "" {
		return highlight.Marker{Start: cfg.Start, End: cfg.End}
	}
	if cfg.Preset != "" {
		if m, ok := highlight.Preset(cfg.Preset); ok {
			return m
		}
		slog.Warn("unknown highlight preset, using ansi", "preset", cfg.Preset)
	}
	return highlight.ANSIPurple
}

// IndexDocument adds content to the index under id.
func (e *Engine) IndexDocument(id int, content string) {
	e.mu.Lock()
	e.index.Add(id, content)
	e.generation.Add(1)
	stats := e.index.Stats()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
		e.metrics.IndexDocuments.Set(float64(stats.Documents))
		e.metrics.IndexTerms.Set(float64(stats.Terms))
	}
	e.logger.Debug("document indexed",
		"doc_id", id,
		"content_len", len(content),
		"terms", stats.Terms,
	)
}

// Search returns the highlighted documents matching term. It never fails; no
// match yields an empty slice.
func (e *Engine) Search(term string) []string {
	e.mu.Lock()
	results := e.index.Query(term)
	e.mu.Unlock()

	if e.metrics != nil {
		resultType := "hit"
		if len(results) == 0 {
			resultType = "zero_result"
		}
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		e.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	return results
}

// Document returns the stored document for id.
func (e *Engine) Document(id int) (index.Document, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Document(id)
}

func (e *Engine) Stats() index.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Stats()
}

// Generation increases by one on every IndexDocument call. Equal generations
// imply equal query results.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}
