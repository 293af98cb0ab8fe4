package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsOpen tracks currently open realtime connections.
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections_open",
			Help: "Number of currently open realtime connections.",
		},
	)

	// IdentifiedUsers tracks users holding at least one identified connection.
	IdentifiedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_identified_users",
			Help: "Number of users with at least one identified connection.",
		},
	)

	// TriggersAccepted counts accepted trigger requests by kind.
	TriggersAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_triggers_accepted_total",
			Help: "Accepted trigger requests.",
		},
		[]string{"kind"},
	)

	// DeliveriesEnqueued counts event frames handed to a connection send queue.
	DeliveriesEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_enqueued_total",
			Help: "Event frames enqueued for delivery to a connection.",
		},
	)

	// DeliveriesDropped counts frames lost to a dead or stalled connection.
	DeliveriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_dropped_total",
			Help: "Event frames dropped because the connection was dead or stalled.",
		},
	)
)
