// Package publisher hands accepted documents to the index, either directly
// through the in-process engine or by producing ingest events to Kafka for an
// index consumer to apply.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/resilience"
)

// Indexer is the part of indexer.Engine the direct publisher needs.
type Indexer interface {
	IndexDocument(id int, content string)
}

// EventPublisher is the part of kafka.Producer the Kafka publisher needs.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Direct indexes documents synchronously.
type Direct struct {
	engine Indexer
	logger *slog.Logger
}

func NewDirect(engine Indexer) *Direct {
	return &Direct{
		engine: engine,
		logger: slog.Default().With("component", "publisher", "mode", "direct"),
	}
}

// Ingest adds the document to the index. The request must already be valid.
func (p *Direct) Ingest(_ context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	p.engine.IndexDocument(*req.ID, req.Content)
	return &ingestion.IngestResponse{
		DocumentID: *req.ID,
		Status:     ingestion.StatusIndexed,
	}, nil
}

func (p *Direct) Mode() string { return "direct" }

// Kafka publishes ingest events keyed by document id, so repeated adds of one
// id are applied in order. Each publish runs under a circuit breaker and a
// timeout.
type Kafka struct {
	producer EventPublisher
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	logger   *slog.Logger
}

// NewKafka wraps producer. m may be nil.
func NewKafka(producer EventPublisher, timeout time.Duration, m *metrics.Metrics) *Kafka {
	cbCfg := resilience.CircuitBreakerConfig{}
	if m != nil {
		cbCfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &Kafka{
		producer: producer,
		breaker:  resilience.NewCircuitBreaker("ingest-publish", cbCfg),
		timeout:  timeout,
		logger:   slog.Default().With("component", "publisher", "mode", "kafka"),
	}
}

// Ingest publishes an IngestEvent. The document is searchable once an index
// consumer has applied it.
func (p *Kafka) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	id := *req.ID
	event := kafka.Event{
		Key: strconv.Itoa(id),
		Value: ingestion.IngestEvent{
			DocumentID: id,
			Content:    req.Content,
			IngestedAt: time.Now().UTC(),
		},
	}
	err := p.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, p.timeout, "publish", func(ctx context.Context) error {
			return p.producer.Publish(ctx, event)
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, resilience.ErrCircuitOpen):
		return nil, apperrors.Newf(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "ingest queue unavailable: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "publishing document %d: %v", id, err)
	default:
		p.logger.Error("failed to publish ingest event", "doc_id", id, "error", err)
		return nil, fmt.Errorf("document %d: %w", id,
			apperrors.Newf(apperrors.ErrPublishFailed, http.StatusServiceUnavailable, "%v", err))
	}
	return &ingestion.IngestResponse{
		DocumentID: id,
		Status:     ingestion.StatusPending,
	}, nil
}

func (p *Kafka) Mode() string { return "kafka" }

// CircuitState reports the publish breaker state for health checks.
func (p *Kafka) CircuitState() resilience.State { return p.breaker.State() }
