package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "recordsdb"
	subsystem = "realtime"
)

var (
	subscribersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "subscribers",
		Help:      "Current number of realtime subscribers",
	}, []string{"scope"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "events_published_total",
		Help:      "Events published to the bus, by event type",
	}, []string{"type"})

	eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "events_delivered_total",
		Help:      "Events handed to subscriber queues",
	})

	subscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "subscribers_dropped_total",
		Help:      "Subscribers removed because their queue was full",
	})
)

func scopeLabel(collection string) string {
	if collection == "" {
		return "all"
	}
	return "collection"
}
