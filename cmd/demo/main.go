// Command demo indexes three sample documents and prints the highlighted
// matches for each query given on the command line, or for "Rust" and
// "Programming" when none are given. Result groups are separated by a blank
// line.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/highlight"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/logger"
)

var sampleDocuments = []index.Document{
	{ID: 1, Content: "Rust is safe and fast."},
	{ID: 2, Content: "Rust is a systems programming language."},
	{ID: 3, Content: "Programming in Rust is fun."},
}

var defaultQueries = []string{"Rust", "Programming"}

func main() {
	configPath := flag.String("config", "", "optional path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	marker := indexer.ResolveMarker(cfg.Indexer.Highlight)
	queries := flag.Args()
	if len(queries) == 0 {
		queries = defaultQueries
	}
	slog.Debug("running demo", "documents", len(sampleDocuments), "queries", queries)

	if err := run(os.Stdout, highlight.New(marker), queries); err != nil {
		slog.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(w io.Writer, h *highlight.Highlighter, queries []string) error {
	idx := index.NewWithHighlighter(h)
	for _, doc := range sampleDocuments {
		idx.Add(doc.ID, doc.Content)
	}
	for i, q := range queries {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		for _, result := range idx.Query(q) {
			if _, err := fmt.Fprintln(w, result); err != nil {
				return err
			}
		}
	}
	return nil
}
