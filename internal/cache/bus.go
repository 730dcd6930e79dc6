package cache

import (
	"context"
	"log/slog"
	"sync"
)

// EventType is a closed variant of change events the bus dispatches.
type EventType int

const (
	TrackRemoved EventType = iota
	TrackModified
	AlbumInvalidated
)

func (e EventType) String() string {
	switch e {
	case TrackRemoved:
		return "TrackRemoved"
	case TrackModified:
		return "TrackModified"
	case AlbumInvalidated:
		return "AlbumInvalidated"
	default:
		return "Unknown"
	}
}

// Event is a single change notification published on the Bus.
type Event struct {
	Type    EventType
	Key     string
	TrackID string
	Artist  string
	Album   string
}

// Subscriber handles one Event. It is run in a bounded background task; it
// must not block indefinitely.
type Subscriber func(ctx context.Context, e Event)

// Bus is the cache orchestrator's change-event bus (spec §4.7). Background
// dispatch tasks are bounded at maxInFlight; beyond that, new events are
// dropped with a debug log rather than growing an unbounded queue — the
// same back-pressure-over-unbounded-growth choice the teacher's ingest
// worker pool makes with its buffered channel.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	sem         chan struct{}
	logger      *slog.Logger
}

// NewBus returns a Bus that runs at most maxInFlight subscriber dispatches
// concurrently.
func NewBus(maxInFlight int, logger *slog.Logger) *Bus {
	if maxInFlight <= 0 {
		maxInFlight = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		sem:    make(chan struct{}, maxInFlight),
		logger: logger,
	}
}

// Subscribe registers a handler for all events.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish dispatches e to every subscriber in its own bounded background
// task. If the in-flight limit is already saturated for a given dispatch,
// that dispatch is dropped (logged at debug) instead of blocking the
// publisher.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case b.sem <- struct{}{}:
			go func(s Subscriber) {
				defer func() { <-b.sem }()
				s(context.Background(), e)
			}(sub)
		default:
			b.logger.Debug("dropping change event: background task limit reached",
				"event_type", e.Type.String(), "key", e.Key)
		}
	}
}
