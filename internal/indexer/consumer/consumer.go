// Package consumer reads ingest events from Kafka and applies them to the
// indexer engine in partition order.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/kafka"
)

// Indexer is the part of indexer.Engine the consumer needs.
type Indexer interface {
	IndexDocument(id int, content string)
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that adds every ingest event to
// engine. Messages that cannot be decoded are logged and committed so they do
// not block the partition.
func HandleMessage(engine Indexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.DocumentID < 0 {
			logger.Error("dropping ingest event with negative id",
				"doc_id", event.DocumentID,
				"key", string(key),
			)
			return nil
		}
		engine.IndexDocument(event.DocumentID, event.Content)
		logger.Debug("document indexed from kafka",
			"doc_id", event.DocumentID,
			"ingested_at", event.IngestedAt,
		)
		return nil
	}
}
