package errmetrics

import (
	"sync"
	"time"
)

// Trend is a closed variant for the §4.12 rate-of-change classification.
type Trend string

const (
	TrendSpike      Trend = "spike"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

type bucket struct {
	start time.Time
	count int
}

// RateTracker buckets error occurrences into fixed-width time buckets
// (default one minute) and keeps only buckets inside the configured
// window, pruning older ones as new occurrences arrive. This gives the
// same "ring buffer of per-minute counts" behavior as spec §4.12 without
// committing to a fixed-capacity array indexed by wall-clock arithmetic.
type RateTracker struct {
	mu          sync.Mutex
	buckets     []bucket
	window      time.Duration
	bucketWidth time.Duration
}

// NewRateTracker returns a tracker covering window, divided into
// bucketWidth-sized buckets (bucketWidth defaults to one minute).
func NewRateTracker(window time.Duration, bucketWidth time.Duration) *RateTracker {
	if bucketWidth <= 0 {
		bucketWidth = time.Minute
	}
	return &RateTracker{window: window, bucketWidth: bucketWidth}
}

// Record adds one occurrence at time t, creating a new bucket if t falls
// outside the current last bucket's width.
func (r *RateTracker) Record(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := t.Truncate(r.bucketWidth)
	r.prune(t)
	if n := len(r.buckets); n > 0 && r.buckets[n-1].start.Equal(start) {
		r.buckets[n-1].count++
		return
	}
	r.buckets = append(r.buckets, bucket{start: start, count: 1})
}

// prune drops buckets whose start is older than window relative to now.
func (r *RateTracker) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.buckets) && r.buckets[i].start.Before(cutoff) {
		i++
	}
	if i > 0 {
		r.buckets = r.buckets[i:]
	}
}

// RatePerMinute returns the total live count projected to a per-minute
// rate.
func (r *RateTracker) RatePerMinute(now time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(now)
	total := 0
	for _, b := range r.buckets {
		total += b.count
	}
	minutes := r.window.Minutes()
	if minutes <= 0 {
		return float64(total)
	}
	return float64(total) / minutes
}

// TrendOverRecentBuckets compares the average of the most recent two live
// buckets against the average of the previous two, per §4.12's thresholds.
// Fewer than four live buckets is treated as TrendStable: there isn't
// enough history yet to call a direction.
func (r *RateTracker) TrendOverRecentBuckets(now time.Time) Trend {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(now)

	n := len(r.buckets)
	if n < 4 {
		return TrendStable
	}
	recent := []int{r.buckets[n-2].count, r.buckets[n-1].count}
	older := []int{r.buckets[n-4].count, r.buckets[n-3].count}
	recentAvg := avg(recent)
	olderAvg := avg(older)

	if olderAvg == 0 {
		if recentAvg > 0 {
			return TrendSpike
		}
		return TrendStable
	}
	ratio := recentAvg / olderAvg
	switch {
	case ratio > 2:
		return TrendSpike
	case ratio > 1.5:
		return TrendIncreasing
	case ratio < 0.5:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func avg(vals []int) float64 {
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}
