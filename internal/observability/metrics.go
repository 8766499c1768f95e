package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "weemirror",
			Subsystem: "transport",
			Name:      "frames_read_total",
			Help:      "Complete frames reassembled from the relay socket.",
		},
	)
	bytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "weemirror",
			Subsystem: "transport",
			Name:      "bytes_read_total",
			Help:      "Raw bytes read from the relay socket.",
		},
	)
	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "weemirror",
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Automatic reconnect attempts by the keepalive watchdog.",
		},
	)
	dispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weemirror",
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Relay messages routed, by message kind.",
		},
		[]string{"kind"},
	)
	decodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "weemirror",
			Subsystem: "dispatch",
			Name:      "decode_failures_total",
			Help:      "Frames that failed binary decoding.",
		},
	)
	droppedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "weemirror",
			Subsystem: "mirror",
			Name:      "dropped_events_total",
			Help:      "Events dropped for referencing an unknown buffer.",
		},
	)
)

// RegisterMetrics installs the collectors on the default registry.
// Safe to call from multiple components.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesRead, bytesRead, reconnects,
			dispatched, decodeFailures, droppedEvents)
	})
}

func CountFrameRead() {
	framesRead.Inc()
}

func CountBytesRead(n int) {
	bytesRead.Add(float64(n))
}

func CountReconnect() {
	reconnects.Inc()
}

// CountDispatch records one routed message. Callers must pass a kind
// from a fixed vocabulary, never a raw wire id, to keep the label space
// bounded.
func CountDispatch(kind string) {
	dispatched.WithLabelValues(kind).Inc()
}

func CountDecodeFailure() {
	decodeFailures.Inc()
}

func CountDroppedEvent() {
	droppedEvents.Inc()
}
