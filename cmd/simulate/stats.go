package main

import (
	"fmt"
	"math"
	"sort"
	"time"
)

type opStats struct {
	Op    string
	Count int
	P50   time.Duration
	P95   time.Duration
}

// latencies collects wall-clock samples per operation name.
type latencies struct {
	now     func() time.Time
	samples map[string][]time.Duration
}

func newLatencies() *latencies {
	return &latencies{now: time.Now, samples: map[string][]time.Duration{}}
}

func (l *latencies) track(op string, fn func() error) error {
	start := l.now()
	err := fn()
	l.samples[op] = append(l.samples[op], l.now().Sub(start))
	return err
}

func (l *latencies) report() []opStats {
	ops := make([]string, 0, len(l.samples))
	for op := range l.samples {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	out := make([]opStats, 0, len(ops))
	for _, op := range ops {
		sorted := append([]time.Duration(nil), l.samples[op]...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out = append(out, opStats{
			Op:    op,
			Count: len(sorted),
			P50:   percentile(sorted, 50),
			P95:   percentile(sorted, 95),
		})
	}
	return out
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// slowOps lists operations whose p95 exceeds the budget.
func slowOps(stats []opStats, budget time.Duration) []opStats {
	if budget <= 0 {
		return nil
	}
	var slow []opStats
	for _, s := range stats {
		if s.P95 > budget {
			slow = append(slow, s)
		}
	}
	return slow
}

type latencyError struct {
	op     string
	p95    time.Duration
	budget time.Duration
}

func (e latencyError) Error() string {
	return fmt.Sprintf("%s p95 %s exceeds budget %s", e.op, e.p95, e.budget)
}
