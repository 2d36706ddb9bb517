package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Change events published to the broker.",
		},
		[]string{"collection", "type"},
	)

	// eventsDropped counts deliveries skipped because a subscriber's buffer was full.
	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Change events dropped for slow subscribers.",
		},
		[]string{"collection"},
	)

	subscribersGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Current number of change-stream subscriptions.",
		},
		[]string{"collection"},
	)

	relayErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_relay_errors_total",
			Help: "Failures publishing to or decoding from the Redis relay.",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsPublished, eventsDropped, subscribersGauge, relayErrors)
}
