// Package loadstats aggregates latency and outcome samples from concurrent
// benchmark workers and prints a summary with percentile distributions.
package loadstats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"
)

// Collector aggregates samples from many workers. All methods are
// goroutine-safe.
type Collector struct {
	mu        sync.Mutex
	latencies []time.Duration
	outcomes  map[string]int
	errors    int
	startTime time.Time
}

// NewCollector creates a new Collector with the start time set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now(), outcomes: make(map[string]int)}
}

// Add records one completed request with its round-trip latency and outcome.
func (c *Collector) Add(d time.Duration, outcome string) {
	c.mu.Lock()
	c.latencies = append(c.latencies, d)
	c.outcomes[outcome]++
	c.mu.Unlock()
}

// AddError increments the error counter.
func (c *Collector) AddError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// Count returns the number of completed requests.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.latencies)
}

// ErrorCount returns the current number of recorded errors.
func (c *Collector) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Summary holds latency percentiles.
type Summary struct {
	N                       int
	Avg, P50, P95, P99, Max time.Duration
}

// Summary computes percentiles over the recorded latencies. The zero
// Summary is returned when nothing was recorded.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	durations := append([]time.Duration(nil), c.latencies...)
	c.mu.Unlock()
	return summarize(durations)
}

// Report writes a formatted summary: duration, throughput, errors,
// outcome counts and latency percentiles.
func (c *Collector) Report(w io.Writer) {
	c.mu.Lock()
	elapsed := time.Since(c.startTime)
	errors := c.errors
	outcomes := make([]string, 0, len(c.outcomes))
	for k := range c.outcomes {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	counts := make([]int, len(outcomes))
	for i, k := range outcomes {
		counts[i] = c.outcomes[k]
	}
	c.mu.Unlock()

	s := c.Summary()
	total := s.N + errors

	fmt.Fprintln(w, "\n=== Benchmark Results ===")
	fmt.Fprintf(w, "Duration:     %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests:     %d\n", total)
	fmt.Fprintf(w, "Errors:       %d\n", errors)
	if total > 0 {
		fmt.Fprintf(w, "Error rate:   %.2f%%\n", float64(errors)/float64(total)*100)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, "Throughput:   %.1f req/s\n", float64(s.N)/secs)
	}

	if len(outcomes) > 0 {
		fmt.Fprintln(w, "\n--- Outcomes ---")
		for i, k := range outcomes {
			fmt.Fprintf(w, "  %-12s %d\n", k, counts[i])
		}
	}

	if s.N > 0 {
		fmt.Fprintln(w, "\n--- Latency ---")
		fmt.Fprintf(w, "  avg: %v  p50: %v  p95: %v  p99: %v  max: %v  (n=%d)\n",
			s.Avg.Round(time.Microsecond),
			s.P50.Round(time.Microsecond),
			s.P95.Round(time.Microsecond),
			s.P99.Round(time.Microsecond),
			s.Max.Round(time.Microsecond),
			s.N,
		)
	}
	fmt.Fprintln(w)
}

func summarize(durations []time.Duration) Summary {
	n := len(durations)
	if n == 0 {
		return Summary{}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return Summary{
		N:   n,
		Avg: sum / time.Duration(n),
		P50: durations[n/2],
		P95: durations[int(math.Ceil(float64(n)*0.95))-1],
		P99: durations[int(math.Ceil(float64(n)*0.99))-1],
		Max: durations[n-1],
	}
}
