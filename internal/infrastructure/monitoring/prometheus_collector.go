package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes gateway metrics. A nil *Collector is valid and records
// nothing, so tests and metrics-disabled deployments can pass nil.
type Collector struct {
	socketsConnected prometheus.Gauge
	connectionsTotal prometheus.Counter

	admissionsTotal *prometheus.CounterVec
	forwardsTotal   *prometheus.CounterVec

	relayAssignmentsTotal *prometheus.CounterVec
	relayNodes            *prometheus.GaugeVec
}

func NewCollector() *Collector {
	return &Collector{
		socketsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relaycast_sockets_connected",
			Help: "Number of currently connected signaling sockets",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relaycast_connections_total",
			Help: "Total number of signaling connections accepted",
		}),

		admissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaycast_admissions_total",
			Help: "Join admission decisions by outcome code",
		}, []string{"outcome"}),

		forwardsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaycast_forwards_total",
			Help: "Negotiation payloads forwarded, by message type",
		}, []string{"type"}),

		relayAssignmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaycast_relay_assignments_total",
			Help: "Relay parent assignment attempts by result",
		}, []string{"result"}),

		relayNodes: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relaycast_relay_nodes",
			Help: "Number of nodes in each room's relay tree",
		}, []string{"room"}),
	}
}

func (c *Collector) RecordConnect() {
	if c == nil {
		return
	}
	c.connectionsTotal.Inc()
	c.socketsConnected.Inc()
}

func (c *Collector) RecordDisconnect() {
	if c == nil {
		return
	}
	c.socketsConnected.Dec()
}

func (c *Collector) RecordAdmission(outcome string) {
	if c == nil {
		return
	}
	c.admissionsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordForward(msgType string) {
	if c == nil {
		return
	}
	c.forwardsTotal.WithLabelValues(msgType).Inc()
}

func (c *Collector) RecordRelayAssignment(assigned bool) {
	if c == nil {
		return
	}
	result := "no_capacity"
	if assigned {
		result = "assigned"
	}
	c.relayAssignmentsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) SetRelayNodes(room string, n int) {
	if c == nil {
		return
	}
	if n == 0 {
		c.relayNodes.DeleteLabelValues(room)
		return
	}
	c.relayNodes.WithLabelValues(room).Set(float64(n))
}
