// Package metrics holds the prometheus collectors of the broker. They are
// registered on the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Actor label values for ControlFaultsTotal.
const (
	ActorBroker     = "broker"
	ActorConnection = "connection"
)

// Connection metrics
var (
	// ConnectionsActive tracks connections registered with a broker
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broker_connections_active",
			Help: "Number of live client connections",
		},
	)

	// ConnectionsTotal counts every connection the broker accepted and registered
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_connections_total",
			Help: "Total client connections registered",
		},
	)

	// ConnectionsRejected counts sockets closed because the broker was no longer running
	ConnectionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_connections_rejected_total",
			Help: "Total accepted sockets closed without creating a connection",
		},
	)

	// ProtocolErrorsTotal counts malformed requests by error code
	ProtocolErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_protocol_errors_total",
			Help: "Total rejected request lines by error code",
		},
		[]string{"code"},
	)
)

// Message flow metrics
var (
	// MessagesPublished counts publish requests processed by the broker loop
	MessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_messages_published_total",
			Help: "Total messages published",
		},
	)

	// DeliveriesTotal counts one delivery per subscriber per published message
	DeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_deliveries_total",
			Help: "Total messages handed to subscribers",
		},
	)

	// ControlFaultsTotal counts control messages whose handling panicked
	ControlFaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_control_faults_total",
			Help: "Total control messages that failed while being handled, by actor",
		},
		[]string{"actor"},
	)
)
