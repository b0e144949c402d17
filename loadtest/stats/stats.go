// Package stats provides a goroutine-safe metrics collector that aggregates
// performance data from multiple load test publishers and prints a summary
// report with percentile distributions.
package stats

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Collector aggregates metrics from multiple publisher goroutines. All
// methods are goroutine-safe and can be called concurrently.
type Collector struct {
	mu               sync.Mutex
	triggerLatencies []time.Duration
	published        int
	errors           int
	startTime        time.Time
	scraper          *Scraper
}

// NewCollector creates a new Collector with the start time set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetScraper attaches a Prometheus metrics scraper to this collector. When
// set, Report() will also print engine-side metrics collected by the scraper.
func (c *Collector) SetScraper(s *Scraper) {
	c.mu.Lock()
	c.scraper = s
	c.mu.Unlock()
}

// AddPublished records one successfully published event.
func (c *Collector) AddPublished() {
	c.mu.Lock()
	c.published++
	c.mu.Unlock()
}

// AddTriggerLatency records the time between publishing a triggering event
// and the resulting action arriving at the gateway.
func (c *Collector) AddTriggerLatency(d time.Duration) {
	c.mu.Lock()
	c.triggerLatencies = append(c.triggerLatencies, d)
	c.mu.Unlock()
}

// AddError increments the error counter.
func (c *Collector) AddError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// PublishedCount returns the current number of published events.
func (c *Collector) PublishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published
}

// ErrorCount returns the current number of recorded errors.
func (c *Collector) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Report prints a formatted summary of the collected metrics to stdout,
// including total duration, publish count, throughput, error count, and a
// percentile distribution for rule trigger latency.
func (c *Collector) Report() {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.startTime)

	fmt.Println("\n=== Load Test Results ===")
	fmt.Printf("Duration:     %s\n", elapsed.Round(time.Second))
	fmt.Printf("Published:    %d events\n", c.published)
	fmt.Printf("Errors:       %d\n", c.errors)

	if secs := elapsed.Seconds(); secs > 0 && c.published > 0 {
		fmt.Printf("Throughput:   %.1f events/s\n", float64(c.published)/secs)
	}

	if len(c.triggerLatencies) > 0 {
		fmt.Println("\n--- Rule Trigger Latency ---")
		printPercentiles(c.triggerLatencies)
	}

	if c.scraper != nil {
		c.scraper.Report()
	}

	fmt.Println()
}

// printPercentiles sorts the given durations and prints avg, p50, p95, p99,
// and max values along with the sample count.
func printPercentiles(durations []time.Duration) {
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	n := len(durations)
	p50 := durations[n/2]
	p95 := durations[int(math.Ceil(float64(n)*0.95))-1]
	p99 := durations[int(math.Ceil(float64(n)*0.99))-1]

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	avg := sum / time.Duration(n)

	fmt.Printf("  avg: %v  p50: %v  p95: %v  p99: %v  max: %v  (n=%d)\n",
		avg.Round(time.Microsecond),
		p50.Round(time.Microsecond),
		p95.Round(time.Microsecond),
		p99.Round(time.Microsecond),
		durations[n-1].Round(time.Microsecond),
		n,
	)
}
