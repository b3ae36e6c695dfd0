package signaler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the server counters with their own registry, so tests
// and multiple instances don't clash on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	connections  prometheus.Gauge
	connTotal    prometheus.Counter
	rooms        prometheus.GaugeFunc
	roomsTotal   prometheus.Counter
	relayed      *prometheus.CounterVec
	relayDropped prometheus.Counter
	joinRejected *prometheus.CounterVec
}

func NewMetrics(roomCount func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "signaler",
			Name:      "connections",
			Help:      "Number of open websocket connections.",
		}),
		connTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signaler",
			Name:      "connections_total",
			Help:      "Total number of accepted websocket connections.",
		}),
		rooms: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "signaler",
			Name:      "rooms",
			Help:      "Number of active rooms.",
		}, roomCount),
		roomsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signaler",
			Name:      "rooms_created_total",
			Help:      "Total number of created rooms.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signaler",
			Name:      "relayed_total",
			Help:      "Total number of relayed negotiation packets.",
		}, []string{"kind"}),
		relayDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signaler",
			Name:      "relay_dropped_total",
			Help:      "Total number of negotiation packets dropped due to an unknown target.",
		}),
		joinRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signaler",
			Name:      "join_rejected_total",
			Help:      "Total number of rejected join requests.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections, m.connTotal, m.rooms, m.roomsTotal,
		m.relayed, m.relayDropped, m.joinRejected,
	)
	return m
}
