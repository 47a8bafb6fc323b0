package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bridgectl",
			Subsystem: "wire",
			Name:      "frames_total",
			Help:      "Total frames by direction and message type.",
		},
		[]string{"direction", "type"},
	)
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bridgectl",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Completed peer calls by outcome.",
		},
		[]string{"connector", "outcome"},
	)
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bridgectl",
			Subsystem: "events",
			Name:      "delivered_total",
			Help:      "Events delivered to local listeners.",
		},
		[]string{"connector"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, callsTotal, eventsTotal)
	})
}

func RecordFrame(direction, messageType string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction, messageType).Inc()
}

func RecordCall(connector, outcome string) {
	RegisterMetrics()
	callsTotal.WithLabelValues(connector, outcome).Inc()
}

func RecordEventDelivered(connector string) {
	RegisterMetrics()
	eventsTotal.WithLabelValues(connector).Inc()
}
