package errmetrics

import (
	"log/slog"
	"sync"
	"time"

	"github.com/barad1tos/reconciler/internal/model"
)

// AlertEvent is raised when one of the collector's alert gates trips.
type AlertEvent struct {
	Name     string
	Severity model.ErrorSeverity
	Error    model.ErrorEvent
}

// AlertHandler consumes an AlertEvent. Handlers must not panic; the
// collector recovers and logs if one does, so a broken handler can't
// destabilize error recording for the rest of the run.
type AlertHandler func(event AlertEvent)

// Collector is the injected (non-singleton, per spec §9) owner of the
// classifier, rate tracker, and pattern detector, wired together with an
// alert-handler chain.
type Collector struct {
	mu         sync.Mutex
	classifier *Classifier
	rate       *RateTracker
	patterns   *PatternDetector
	handlers   []AlertHandler
	logger     *slog.Logger

	highRateThresholdPerMin float64
}

// NewCollector builds a Collector. logger may be nil (defaults to
// slog.Default()).
func NewCollector(classifier *Classifier, rate *RateTracker, patterns *PatternDetector, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		classifier:              classifier,
		rate:                    rate,
		patterns:                patterns,
		logger:                  logger,
		highRateThresholdPerMin: 10,
	}
}

// AddHandler appends an alert handler to the chain. Handlers run
// sequentially, in registration order.
func (c *Collector) AddHandler(h AlertHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Record classifies and records one error occurrence at time t, then
// evaluates the §4.12 alert gates and dispatches any that trip.
func (c *Collector) Record(exceptionType, message, stackTrace string, t time.Time) model.ErrorEvent {
	category, severity := c.classifier.Classify(exceptionType, message, stackTrace)
	event := model.NewErrorEvent(exceptionType, message, category, severity)
	event.Timestamp = t
	event.StackTrace = stackTrace

	c.rate.Record(t)
	pattern := c.patterns.Record(event.Signature, severity, t)

	c.evaluateGates(event, pattern, t)
	return event
}

func (c *Collector) evaluateGates(event model.ErrorEvent, pattern *Pattern, t time.Time) {
	rate := c.rate.RatePerMinute(t)
	if rate > c.highRateThresholdPerMin {
		c.dispatch(AlertEvent{Name: "HighErrorRate", Severity: model.SeverityHigh, Error: event})
	}

	if c.rate.TrendOverRecentBuckets(t) == TrendSpike {
		c.dispatch(AlertEvent{Name: "ErrorRateSpike", Severity: model.SeverityCritical, Error: event})
	}

	if event.Severity == model.SeverityCritical {
		c.dispatch(AlertEvent{Name: "CriticalError", Severity: model.SeverityCritical, Error: event})
	}

	_ = pattern // no alert gate consults the pattern, and AlertEvent does not carry it.
}

// dispatch runs every registered handler in order, recovering and logging
// any panic a handler causes rather than letting it propagate.
func (c *Collector) dispatch(alert AlertEvent) {
	c.mu.Lock()
	handlers := append([]AlertHandler(nil), c.handlers...)
	c.mu.Unlock()

	for _, h := range handlers {
		c.runHandlerSafely(h, alert)
	}
}

func (c *Collector) runHandlerSafely(h AlertHandler, alert AlertEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("alert handler panicked", "alert", alert.Name, "recovered", r)
		}
	}()
	h(alert)
}
