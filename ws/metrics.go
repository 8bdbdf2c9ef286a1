package ws

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	liveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "minichat",
			Name:      "live_sessions",
			Help:      "Number of connected websocket sessions.",
		},
	)

	liveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "minichat",
			Name:      "live_subscriptions",
			Help:      "Number of live collection subscriptions.",
		},
	)

	rejectedSubmissions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minichat",
			Name:      "rejected_submissions_total",
			Help:      "Number of messages rejected by validation.",
		},
	)

	profileUpserts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minichat",
			Name:      "profile_upserts_total",
			Help:      "Number of profile upserts.",
		},
	)
)

func init() {
	prometheus.MustRegister(liveSessions)
	prometheus.MustRegister(liveSubscriptions)
	prometheus.MustRegister(rejectedSubmissions)
	prometheus.MustRegister(profileUpserts)
}
