package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Stats aggregates request outcomes for one operation kind.
type Stats struct {
	name      string
	total     atomic.Int64
	errors    atomic.Int64
	cacheHits atomic.Int64
	hits      atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func NewStats(name string) *Stats {
	return &Stats{
		name:      name,
		latencies: make([]time.Duration, 0, 1<<14),
		codes:     make(map[int]int64),
	}
}

// Record counts one request. A zero status means a transport error.
func (s *Stats) Record(d time.Duration, status int) {
	s.total.Add(1)
	if status < 200 || status >= 300 {
		s.errors.Add(1)
	}
	s.mu.Lock()
	if status != 0 {
		s.latencies = append(s.latencies, d)
	}
	s.codes[status]++
	s.mu.Unlock()
}

// RecordSearch notes what a successful search returned.
func (s *Stats) RecordSearch(totalHits int, cacheHit bool) {
	if totalHits > 0 {
		s.hits.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
}

// Report writes a summary of s. elapsed is used for the request rate.
func (s *Stats) Report(w io.Writer, elapsed time.Duration) {
	total := s.total.Load()
	errs := s.errors.Load()
	fmt.Fprintf(w, "=== %s ===\n", s.name)
	fmt.Fprintf(w, "Requests:     %d\n", total)
	fmt.Fprintf(w, "Errors:       %d\n", errs)
	if total == 0 {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "Error Rate:   %.2f%%\n", float64(errs)/float64(total)*100)
	fmt.Fprintf(w, "Requests/sec: %.2f\n", float64(total)/elapsed.Seconds())
	if n := s.hits.Load() + s.cacheHits.Load(); n > 0 {
		fmt.Fprintf(w, "With Results: %d\n", s.hits.Load())
		fmt.Fprintf(w, "Cache Hits:   %d\n", s.cacheHits.Load())
	}

	s.mu.Lock()
	latencies := slices.Clone(s.latencies)
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(s.codes))
	for code, n := range s.codes {
		counts[code] = n
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintf(w, "Latency min/avg/p50/p95/p99/max: %s / %s / %s / %s / %s / %s\n",
			latencies[0],
			sum/time.Duration(len(latencies)),
			percentile(latencies, 50),
			percentile(latencies, 95),
			percentile(latencies, 99),
			latencies[len(latencies)-1],
		)
	}
	slices.Sort(codes)
	for _, code := range codes {
		label := fmt.Sprint(code)
		if code == 0 {
			label = "err"
		}
		fmt.Fprintf(w, "  %s: %d\n", label, counts[code])
	}
	fmt.Fprintln(w)
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
