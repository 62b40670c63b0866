// Command loadtest seeds a running search service with generated documents
// and then drives a mixed search and ingest workload against it, printing
// per-operation latency and status summaries.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL      string
	Concurrency  int
	Duration     time.Duration
	SeedDocs     int
	IngestRatio  float64
	Terms        []string
	FirstDocID   int
	RequestLimit time.Duration
}

var vocabulary = []string{
	"rust", "go", "search", "index", "query", "token", "highlight", "posting",
	"cache", "kafka", "redis", "postgres", "engine", "document", "term", "marker",
}

func main() {
	cfg := Config{Terms: vocabulary}
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the search service")
	flag.IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "workload duration")
	flag.IntVar(&cfg.SeedDocs, "seed", 1000, "documents to ingest before the workload starts")
	flag.Float64Var(&cfg.IngestRatio, "ingest-ratio", 0.1, "fraction of workload requests that ingest")
	flag.IntVar(&cfg.FirstDocID, "first-id", 1_000_000, "first document id used by the load test")
	flag.DurationVar(&cfg.RequestLimit, "timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	fmt.Println("=== Text Search Load Test ===")
	fmt.Printf("Target:       %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:  %d\n", cfg.Concurrency)
	fmt.Printf("Duration:     %s\n", cfg.Duration)
	fmt.Printf("Seed Docs:    %d\n", cfg.SeedDocs)
	fmt.Printf("Ingest Ratio: %.2f\n\n", cfg.IngestRatio)

	lt := newLoadTest(cfg)
	if err := lt.seed(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "seeding failed: %v\n", err)
		os.Exit(1)
	}
	elapsed := lt.run(context.Background())

	lt.search.Report(os.Stdout, elapsed)
	lt.ingest.Report(os.Stdout, elapsed)
	if lt.search.total.Load() == 0 {
		fmt.Println("WARNING: no searches completed. Is the service running?")
		os.Exit(1)
	}
}

type loadTest struct {
	cfg    Config
	client *http.Client
	search *Stats
	ingest *Stats
	nextID chan int
}

func newLoadTest(cfg Config) *loadTest {
	lt := &loadTest{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestLimit,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.Concurrency * 2,
				MaxIdleConnsPerHost: cfg.Concurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		search: NewStats("search"),
		ingest: NewStats("ingest"),
		nextID: make(chan int),
	}
	go func() {
		for id := cfg.FirstDocID; ; id++ {
			lt.nextID <- id
		}
	}()
	return lt
}

// document builds text from a handful of vocabulary words, mixing case so
// highlighting has to preserve the original form.
func (lt *loadTest) document(r *rand.Rand) string {
	var buf bytes.Buffer
	for i := range 6 + r.IntN(10) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		word := lt.cfg.Terms[r.IntN(len(lt.cfg.Terms))]
		if r.IntN(4) == 0 {
			word = strings.ToUpper(word[:1]) + word[1:]
		}
		buf.WriteString(word)
	}
	buf.WriteByte('.')
	return buf.String()
}

func (lt *loadTest) seed(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lt.cfg.Concurrency)
	r := rand.New(rand.NewPCG(1, 2))
	for range lt.cfg.SeedDocs {
		id, content := <-lt.nextID, lt.document(r)
		g.Go(func() error {
			status, err := lt.doIngest(ctx, id, content)
			if err != nil {
				return err
			}
			if status != http.StatusCreated && status != http.StatusAccepted {
				return fmt.Errorf("seeding document %d: status %d", id, status)
			}
			return nil
		})
	}
	return g.Wait()
}

func (lt *loadTest) run(parent context.Context) time.Duration {
	ctx, cancel := context.WithTimeout(parent, lt.cfg.Duration)
	defer cancel()

	start := time.Now()
	var g errgroup.Group
	for w := range lt.cfg.Concurrency {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(uint64(w), uint64(time.Now().UnixNano())))
			for ctx.Err() == nil {
				if r.Float64() < lt.cfg.IngestRatio {
					lt.doIngest(ctx, <-lt.nextID, lt.document(r))
					continue
				}
				lt.doSearch(ctx, lt.cfg.Terms[r.IntN(len(lt.cfg.Terms))])
			}
			return nil
		})
	}
	g.Wait()
	return time.Since(start)
}

func (lt *loadTest) doIngest(ctx context.Context, id int, content string) (int, error) {
	body, err := json.Marshal(map[string]any{"id": id, "content": content})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lt.cfg.BaseURL+"/api/v1/documents", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := lt.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			lt.ingest.Record(time.Since(start), 0)
		}
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	lt.ingest.Record(time.Since(start), resp.StatusCode)
	return resp.StatusCode, nil
}

func (lt *loadTest) doSearch(ctx context.Context, term string) {
	u := fmt.Sprintf("%s/api/v1/search?q=%s", lt.cfg.BaseURL, url.QueryEscape(term))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return
	}

	start := time.Now()
	resp, err := lt.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			lt.search.Record(time.Since(start), 0)
		}
		return
	}
	defer resp.Body.Close()

	var result struct {
		TotalHits int  `json:"total_hits"`
		CacheHit  bool `json:"cache_hit"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)
	lt.search.Record(time.Since(start), resp.StatusCode)
	if decodeErr == nil && resp.StatusCode == http.StatusOK {
		lt.search.RecordSearch(result.TotalHits, result.CacheHit)
	}
}
