package errmetrics

import (
	"sync"
	"time"

	"github.com/barad1tos/reconciler/internal/model"
)

// severityFactor maps a severity to the §4.12 impact-score multiplier.
func severityFactor(s model.ErrorSeverity) float64 {
	switch s {
	case model.SeverityCritical:
		return 1.0
	case model.SeverityHigh:
		return 0.75
	case model.SeverityMedium:
		return 0.5
	default:
		return 0.25
	}
}

// Pattern is a detected recurring error signature.
type Pattern struct {
	Signature   string
	Count       int
	FirstSeen   time.Time
	LastSeen    time.Time
	ImpactScore float64
}

// PatternDetector tracks, per error signature, the timestamps of recent
// occurrences pruned to a window, and emits a Pattern once a signature
// crosses minOccurrences.
type PatternDetector struct {
	mu             sync.Mutex
	window         time.Duration
	minOccurrences int
	history        map[string][]time.Time
	severities     map[string]model.ErrorSeverity
}

// NewPatternDetector returns a detector with the given window and minimum
// occurrence count before a pattern is considered established.
func NewPatternDetector(window time.Duration, minOccurrences int) *PatternDetector {
	return &PatternDetector{
		window:         window,
		minOccurrences: minOccurrences,
		history:        make(map[string][]time.Time),
		severities:     make(map[string]model.ErrorSeverity),
	}
}

// Record adds one occurrence of signature at time t with the given
// severity, and returns the updated Pattern if the signature has reached
// minOccurrences, or nil otherwise.
func (p *PatternDetector) Record(signature string, severity model.ErrorSeverity, t time.Time) *Pattern {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.severities[signature] = severity
	times := append(p.history[signature], t)
	times = pruneOlderThan(times, t.Add(-p.window))
	p.history[signature] = times

	if len(times) < p.minOccurrences {
		return nil
	}

	first := times[0]
	last := times[len(times)-1]
	timeFactor := 1.0
	if len(times) >= 2 {
		minutesSincePrevious := last.Sub(times[len(times)-2]).Minutes()
		timeFactor = 1 - minutesSincePrevious/60
		if timeFactor < 0.1 {
			timeFactor = 0.1
		}
	}

	return &Pattern{
		Signature:   signature,
		Count:       len(times),
		FirstSeen:   first,
		LastSeen:    last,
		ImpactScore: float64(len(times)) * timeFactor * severityFactor(severity),
	}
}

func pruneOlderThan(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	return append([]time.Time(nil), times[i:]...)
}
