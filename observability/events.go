package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"cdpchain/core/events"
)

// EventCounter counts emitted engine events by type. It satisfies
// events.Emitter so it can sit in a fanout next to other sinks.
type EventCounter struct {
	emitted *prometheus.CounterVec
}

var (
	eventCounterOnce sync.Once
	eventCounter     *EventCounter
)

// Events returns the metrics registry tracking structured engine events.
func Events() *EventCounter {
	eventCounterOnce.Do(func() {
		eventCounter = &EventCounter{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdp",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of engine events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventCounter.emitted)
	})
	return eventCounter
}

// Emit implements events.Emitter.
func (c *EventCounter) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	c.Record(evt.EventType())
}

// Record increments the counter for an event type.
func (c *EventCounter) Record(eventType string) {
	if c == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	c.emitted.WithLabelValues(normalized).Inc()
}
