package loader

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/postgres"
)

func TestBuildQueries(t *testing.T) {
	first, next := buildQueries(config.BootstrapConfig{
		Table:       "docs",
		IDColumn:    "doc_id",
		TextColumn:  "body",
		OrderColumn: "seq",
	})
	assert.Equal(t,
		`SELECT "doc_id", "body", "seq" FROM "docs" ORDER BY "seq", "doc_id" LIMIT $1`,
		first,
	)
	assert.Equal(t,
		`SELECT "doc_id", "body", "seq" FROM "docs" WHERE ("seq", "doc_id") > ($1, $2) ORDER BY "seq", "doc_id" LIMIT $3`,
		next,
	)
}

func TestBuildQueriesQuoteIdentifiers(t *testing.T) {
	_, q := buildQueries(config.BootstrapConfig{
		Table:       `docs"; DROP TABLE x; --`,
		IDColumn:    "id",
		TextColumn:  "content",
		OrderColumn: "seq",
	})
	assert.Contains(t, q, `FROM "docs""; DROP TABLE x; --"`)
}

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	cfg := config.Default().Postgres
	cfg.Host = envOrDefault("TEST_POSTGRES_HOST", cfg.Host)
	cfg.Database = envOrDefault("TEST_POSTGRES_DB", "textsearch_test")
	if v := os.Getenv("TEST_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	client, err := postgres.New(context.Background(), cfg)
	if err != nil {
		t.Skipf("skipping loader test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLoadFromPostgres(t *testing.T) {
	client := skipIfNoPostgres(t)
	ctx := context.Background()
	table := fmt.Sprintf("loader_test_%d", time.Now().UnixNano())

	_, err := client.DB.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE %s (seq BIGSERIAL PRIMARY KEY, id INTEGER NOT NULL, content TEXT)`, table))
	require.NoError(t, err)
	t.Cleanup(func() {
		client.DB.ExecContext(context.Background(), "DROP TABLE "+table)
	})

	err = client.InTx(ctx, nil, func(tx *sql.Tx) error {
		for _, row := range []struct {
			id      int
			content any
		}{
			{2, "Rust is a systems programming language."},
			{1, "Rust is safe and fast."},
			{3, "Programming in Rust is fun."},
			{4, nil},
		} {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO %s (id, content) VALUES ($1, $2)", table), row.id, row.content); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	engine := indexer.NewEngine(config.IndexerConfig{Highlight: config.HighlightConfig{Preset: "html"}}, nil)
	l := New(client, config.BootstrapConfig{
		Table:       table,
		IDColumn:    "id",
		TextColumn:  "content",
		OrderColumn: "seq",
		BatchSize:   2,
	})
	n, err := l.Load(ctx, engine)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, []string{
		"<mark>Rust</mark> is a systems programming language.",
		"<mark>Rust</mark> is safe and fast.",
		"Programming in <mark>Rust</mark> is fun.",
	}, engine.Search("rust"))
	doc, ok := engine.Document(4)
	require.True(t, ok)
	assert.Empty(t, doc.Content)
}

func TestLoadSharedSequenceAcrossBatchBoundary(t *testing.T) {
	client := skipIfNoPostgres(t)
	ctx := context.Background()
	table := fmt.Sprintf("loader_ties_%d", time.Now().UnixNano())

	_, err := client.DB.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE %s (seq BIGINT NOT NULL, id INTEGER NOT NULL, content TEXT, PRIMARY KEY (seq, id))`, table))
	require.NoError(t, err)
	t.Cleanup(func() {
		client.DB.ExecContext(context.Background(), "DROP TABLE "+table)
	})

	// The first batch ends inside seq 2, which ids 3 and 4 also carry.
	_, err = client.DB.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (seq, id, content) VALUES
			(1, 1, 'go one'), (2, 2, 'go two'), (2, 3, 'go three'), (2, 4, 'go four'), (3, 5, 'go five')`, table))
	require.NoError(t, err)

	engine := indexer.NewEngine(config.IndexerConfig{Highlight: config.HighlightConfig{Preset: "html"}}, nil)
	l := New(client, config.BootstrapConfig{
		Table:       table,
		IDColumn:    "id",
		TextColumn:  "content",
		OrderColumn: "seq",
		BatchSize:   2,
	})
	n, err := l.Load(ctx, engine)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{
		"<mark>go</mark> one",
		"<mark>go</mark> two",
		"<mark>go</mark> three",
		"<mark>go</mark> four",
		"<mark>go</mark> five",
	}, engine.Search("go"))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
