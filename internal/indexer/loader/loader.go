// Package loader bootstraps the index from a PostgreSQL table of documents.
// Rows are read in ascending (sequence, id) order, in batches, inside one
// read-only repeatable-read transaction so the load sees a single snapshot.
// Pages are keyed on the (sequence, id) pair, so rows sharing a sequence value
// are never skipped at a batch boundary; (sequence, id) pairs must be unique.
// Each row becomes one add, so the resulting postings order follows the
// sequence column with ties broken by id.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/postgres"
)

// Indexer is the part of indexer.Engine the loader needs.
type Indexer interface {
	IndexDocument(id int, content string)
}

type Loader struct {
	client     *postgres.Client
	cfg        config.BootstrapConfig
	firstQuery string
	nextQuery  string
	logger     *slog.Logger
}

// cursor is the (sequence, id) key of the last row of a batch.
type cursor struct {
	seq int64
	id  int64
}

func New(client *postgres.Client, cfg config.BootstrapConfig) *Loader {
	first, next := buildQueries(cfg)
	return &Loader{
		client:     client,
		cfg:        cfg,
		firstQuery: first,
		nextQuery:  next,
		logger:     slog.Default().With("component", "bootstrap-loader", "table", cfg.Table),
	}
}

// Load feeds every row to engine and returns the number of documents added.
func (l *Loader) Load(ctx context.Context, engine Indexer) (int, error) {
	start := time.Now()
	loaded := 0
	err := l.client.InTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sql.Tx) error {
		var after *cursor
		for {
			n, last, err := l.loadBatch(ctx, tx, after, engine)
			if err != nil {
				return err
			}
			loaded += n
			if n < l.cfg.BatchSize {
				return nil
			}
			after = &last
			l.logger.Debug("bootstrap batch loaded", "rows", n, "total", loaded)
		}
	})
	if err != nil {
		return loaded, fmt.Errorf("bootstrapping from %s: %w", l.cfg.Table, err)
	}
	l.logger.Info("bootstrap complete",
		"documents", loaded,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return loaded, nil
}

func (l *Loader) loadBatch(ctx context.Context, tx *sql.Tx, after *cursor, engine Indexer) (int, cursor, error) {
	var (
		rows *sql.Rows
		err  error
		last cursor
	)
	if after == nil {
		rows, err = tx.QueryContext(ctx, l.firstQuery, l.cfg.BatchSize)
	} else {
		last = *after
		rows, err = tx.QueryContext(ctx, l.nextQuery, after.seq, after.id, l.cfg.BatchSize)
	}
	if err != nil {
		return 0, last, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id      int
			content sql.NullString
			seq     int64
		)
		if err := rows.Scan(&id, &content, &seq); err != nil {
			return n, last, fmt.Errorf("scanning document row: %w", err)
		}
		engine.IndexDocument(id, content.String)
		last = cursor{seq: seq, id: int64(id)}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, last, fmt.Errorf("iterating document rows: %w", err)
	}
	return n, last, nil
}

// buildQueries returns the query for the first page and the keyset query for
// every page after it.
func buildQueries(cfg config.BootstrapConfig) (first, next string) {
	id := pq.QuoteIdentifier(cfg.IDColumn)
	seq := pq.QuoteIdentifier(cfg.OrderColumn)
	sel := fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		id, pq.QuoteIdentifier(cfg.TextColumn), seq, pq.QuoteIdentifier(cfg.Table))
	order := fmt.Sprintf("ORDER BY %s, %s", seq, id)
	first = fmt.Sprintf("%s %s LIMIT $1", sel, order)
	next = fmt.Sprintf("%s WHERE (%s, %s) > ($1, $2) %s LIMIT $3", sel, seq, id, order)
	return first, next
}
