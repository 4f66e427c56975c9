package simulator

import (
	"fmt"
	"strings"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatency        = time.Microsecond
	maxLatency        = time.Minute
	significantDigits = 3
)

// Stats counts what a run did and records per-operation latency in microseconds
type Stats struct {
	Orders        int
	Rejected      int
	Cancels       int
	CancelMisses  int
	CancelSkipped int
	Elapsed       time.Duration

	latency *hdrhistogram.Histogram
}

func newStats() *Stats {
	return &Stats{
		latency: hdrhistogram.New(minLatency.Microseconds(), maxLatency.Microseconds(), significantDigits),
	}
}

// Operations is the number of iterations that did something
func (s *Stats) Operations() int {
	return s.Orders + s.Rejected + s.Cancels + s.CancelMisses + s.CancelSkipped
}

func (s *Stats) record(d time.Duration) {
	us := d.Microseconds()
	if us < minLatency.Microseconds() {
		us = minLatency.Microseconds()
	}
	if us > maxLatency.Microseconds() {
		us = maxLatency.Microseconds()
	}
	// in range by construction
	_ = s.latency.RecordValue(us)
}

// LatencyAt returns the latency at quantile q (0-100)
func (s *Stats) LatencyAt(q float64) time.Duration {
	return time.Duration(s.latency.ValueAtQuantile(q)) * time.Microsecond
}

// Summary renders counts and latency percentiles
func (s *Stats) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Operations: %d in %v\n", s.Operations(), s.Elapsed.Round(time.Microsecond))
	fmt.Fprintf(&sb, "  Orders: %d, Rejected: %d\n", s.Orders, s.Rejected)
	fmt.Fprintf(&sb, "  Cancels: %d, Not found: %d, Nothing to cancel: %d\n", s.Cancels, s.CancelMisses, s.CancelSkipped)
	if s.latency.TotalCount() == 0 {
		sb.WriteString("  Latency: n/a\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "  Latency p50: %v, p90: %v, p99: %v, max: %v\n",
		s.LatencyAt(50), s.LatencyAt(90), s.LatencyAt(99),
		time.Duration(s.latency.Max())*time.Microsecond)
	return sb.String()
}
