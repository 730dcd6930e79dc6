package errmetrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/barad1tos/reconciler/internal/errmetrics"
	"github.com/barad1tos/reconciler/internal/model"
)

func baseTime() time.Time { return time.Date(2026, time.July, 31, 12, 0, 0, 0, time.UTC) }

func TestClassifierMatchesKnownPatterns(t *testing.T) {
	c := errmetrics.NewClassifier()

	category, severity := c.Classify("ConnectionError", "connection refused by remote host", "")
	assert.Equal(t, model.CategoryNetwork, category)
	assert.Equal(t, model.SeverityHigh, severity)

	category, severity = c.Classify("TimeoutError", "operation timed out", "")
	assert.Equal(t, model.CategoryTimeout, category)
	assert.Equal(t, model.SeverityMedium, severity)
}

func TestClassifierDefaultsToUnknownMedium(t *testing.T) {
	c := errmetrics.NewClassifier()
	category, severity := c.Classify("WeirdError", "something entirely novel happened", "")
	assert.Equal(t, model.CategoryUnknown, category)
	assert.Equal(t, model.SeverityMedium, severity)
}

func TestSignatureDependsOnlyOnTypeCategoryNormalizedMessage(t *testing.T) {
	sigA := model.ComputeSignature("TimeoutError", model.CategoryTimeout, "attempt 1 failed")
	sigB := model.ComputeSignature("TimeoutError", model.CategoryTimeout, "attempt 42 failed")
	assert.Equal(t, sigA, sigB, "digit runs normalize away")

	sigC := model.ComputeSignature("TimeoutError", model.CategoryTimeout, "attempt 1 failed badly")
	assert.NotEqual(t, sigA, sigC)
}

func TestRateTrackerRatePerMinute(t *testing.T) {
	tr := errmetrics.NewRateTracker(10*time.Minute, time.Minute)
	now := baseTime()
	for i := 0; i < 5; i++ {
		tr.Record(now)
	}
	assert.InDelta(t, 0.5, tr.RatePerMinute(now), 0.01)
}

func TestRateTrackerPrunesOldBuckets(t *testing.T) {
	tr := errmetrics.NewRateTracker(2*time.Minute, time.Minute)
	now := baseTime()
	tr.Record(now.Add(-10 * time.Minute))
	tr.Record(now)
	assert.InDelta(t, 0.5, tr.RatePerMinute(now), 0.01)
}

func TestRateTrackerTrendSpike(t *testing.T) {
	tr := errmetrics.NewRateTracker(10*time.Minute, time.Minute)
	now := baseTime()
	// two old buckets with 1 each, two recent buckets with 10 each.
	for i, count := range []int{1, 1, 10, 10} {
		bucketTime := now.Add(time.Duration(i) * time.Minute)
		for c := 0; c < count; c++ {
			tr.Record(bucketTime)
		}
	}
	trend := tr.TrendOverRecentBuckets(now.Add(3 * time.Minute))
	assert.Equal(t, errmetrics.TrendSpike, trend)
}

func TestRateTrackerTrendStableWithFewBuckets(t *testing.T) {
	tr := errmetrics.NewRateTracker(10*time.Minute, time.Minute)
	now := baseTime()
	tr.Record(now)
	assert.Equal(t, errmetrics.TrendStable, tr.TrendOverRecentBuckets(now))
}

func TestPatternDetectorEmitsAfterMinOccurrences(t *testing.T) {
	pd := errmetrics.NewPatternDetector(time.Hour, 3)
	now := baseTime()

	assert.Nil(t, pd.Record("sig1", model.SeverityHigh, now))
	assert.Nil(t, pd.Record("sig1", model.SeverityHigh, now.Add(time.Minute)))
	pattern := pd.Record("sig1", model.SeverityHigh, now.Add(2*time.Minute))
	if assert.NotNil(t, pattern) {
		assert.Equal(t, 3, pattern.Count)
		assert.Greater(t, pattern.ImpactScore, 0.0)
	}
}

func TestPatternDetectorPrunesOutsideWindow(t *testing.T) {
	pd := errmetrics.NewPatternDetector(time.Minute, 2)
	now := baseTime()
	pd.Record("sig2", model.SeverityLow, now)
	pattern := pd.Record("sig2", model.SeverityLow, now.Add(5*time.Minute))
	assert.Nil(t, pattern, "first occurrence should have aged out of the window")
}

func TestCollectorDispatchesHighRateAlert(t *testing.T) {
	classifier := errmetrics.NewClassifier()
	tracker := errmetrics.NewRateTracker(time.Minute, time.Minute)
	patterns := errmetrics.NewPatternDetector(time.Hour, 1000)
	collector := errmetrics.NewCollector(classifier, tracker, patterns, nil)

	var alerts []errmetrics.AlertEvent
	collector.AddHandler(func(e errmetrics.AlertEvent) { alerts = append(alerts, e) })

	now := baseTime()
	for i := 0; i < 15; i++ {
		collector.Record("ConnectionError", "connection refused", "", now)
	}

	found := false
	for _, a := range alerts {
		if a.Name == "HighErrorRate" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCollectorHandlerPanicDoesNotDestabilizeRecording(t *testing.T) {
	classifier := errmetrics.NewClassifier()
	tracker := errmetrics.NewRateTracker(time.Minute, time.Minute)
	patterns := errmetrics.NewPatternDetector(time.Hour, 1000)
	collector := errmetrics.NewCollector(classifier, tracker, patterns, nil)

	collector.AddHandler(func(e errmetrics.AlertEvent) { panic("handler blew up") })

	assert.NotPanics(t, func() {
		for i := 0; i < 15; i++ {
			collector.Record("ConnectionError", "connection refused", "", baseTime())
		}
	})
}

func TestCollectorCriticalSeverityAlerts(t *testing.T) {
	classifier := errmetrics.NewClassifier()
	tracker := errmetrics.NewRateTracker(time.Minute, time.Minute)
	patterns := errmetrics.NewPatternDetector(time.Hour, 1000)
	collector := errmetrics.NewCollector(classifier, tracker, patterns, nil)

	var alerts []errmetrics.AlertEvent
	collector.AddHandler(func(e errmetrics.AlertEvent) { alerts = append(alerts, e) })

	collector.Record("ConfigError", "missing required setting FOO", "", baseTime())

	found := false
	for _, a := range alerts {
		if a.Name == "CriticalError" {
			found = true
		}
	}
	assert.True(t, found)
}
