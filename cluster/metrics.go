package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	submittedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minichat",
			Name:      "submitted_messages_total",
			Help:      "Number of messages written to kafka.",
		},
	)

	storedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minichat",
			Name:      "stored_messages_total",
			Help:      "Number of messages consumed from kafka and saved.",
		},
	)

	discardedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minichat",
			Name:      "discarded_messages_total",
			Help:      "Number of kafka messages skipped for bad format or size.",
		},
	)
)

func init() {
	prometheus.MustRegister(submittedMessages)
	prometheus.MustRegister(storedMessages)
	prometheus.MustRegister(discardedMessages)
}
