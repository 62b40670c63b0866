package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
)

type failingPublisher struct{}

func (failingPublisher) Ingest(context.Context, *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	return nil, apperrors.New(apperrors.ErrPublishFailed, http.StatusServiceUnavailable, "broker down")
}

func (failingPublisher) Mode() string { return "kafka" }

type pendingPublisher struct{}

func (pendingPublisher) Ingest(_ context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	return &ingestion.IngestResponse{DocumentID: *req.ID, Status: ingestion.StatusPending}, nil
}

func (pendingPublisher) Mode() string { return "kafka" }

func post(h *Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	h.Ingest(rec, req)
	return rec
}

func TestIngestDirect(t *testing.T) {
	engine := indexer.NewEngine(config.IndexerConfig{}, nil)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := New(publisher.NewDirect(engine), 1024, m)

	rec := post(h, `{"id": 2, "content": "Rust is a systems programming language."}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ingestion.IngestResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ingestion.IngestResponse{DocumentID: 2, Status: ingestion.StatusIndexed}, resp)
	assert.Len(t, engine.Search("programming"), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestTotal.WithLabelValues("direct", "accepted")))
}

func TestIngestKafkaAccepted(t *testing.T) {
	rec := post(New(pendingPublisher{}, 1024, nil), `{"id": 5, "content": "x"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestIngestRejectsOversizedBody(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := New(pendingPublisher{}, 8, m)

	// Limit is 8*2+1024 bytes; the body is valid JSON well past it.
	body := `{"id": 1, "content": "` + strings.Repeat("a", 4096) + `"}`
	rec := post(h, body)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "request body too large", resp["error"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestTotal.WithLabelValues("kafka", "invalid")))

	// Within the byte limit, content over maxContentBytes is a validation error.
	rec = post(h, `{"id": 1, "content": "`+strings.Repeat("a", 100)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestRejectsBadRequests(t *testing.T) {
	h := New(pendingPublisher{}, 8, nil)

	rec := post(h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(h, `{"content": "no id"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "validation failed", body["error"])
	assert.Contains(t, body["fields"], "id")

	rec = post(h, `{"id": 1, "content": "far too long for the limit"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestPublishFailure(t *testing.T) {
	rec := post(New(failingPublisher{}, 1024, nil), `{"id": 1, "content": "x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
