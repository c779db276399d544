package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomrelay"

// Metrics holds the relay's collectors. All methods are safe on a nil
// receiver so tests can skip wiring a registry.
type Metrics struct {
	Connections    prometheus.Gauge
	ConnectsTotal  prometheus.Counter
	Rooms          prometheus.Gauge
	Receivers      prometheus.Gauge
	Messages       *prometheus.CounterVec
	Errors         *prometheus.CounterVec
	Relayed        *prometheus.CounterVec
	DroppedSends   prometheus.Counter
	ForcedClosures *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the relay collectors on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections",
			Help: "Currently open signaling connections.",
		}),
		ConnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_total",
			Help: "Signaling connections accepted since start.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms",
			Help: "Live rooms.",
		}),
		Receivers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "receivers",
			Help: "Receivers joined across all rooms.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_total",
			Help: "Inbound messages by type.",
		}, []string{"type"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total",
			Help: "Protocol errors returned to clients by code.",
		}, []string{"code"}),
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "relayed_total",
			Help: "Payloads relayed between peers by type.",
		}, []string{"type"}),
		DroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "dropped_sends_total",
			Help: "Outbound messages dropped because the connection was closing or its queue was full.",
		}),
		ForcedClosures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "forced_closures_total",
			Help: "Connections closed by the relay by reason.",
		}, []string{"reason"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Connections, m.ConnectsTotal, m.Rooms, m.Receivers,
		m.Messages, m.Errors, m.Relayed, m.DroppedSends, m.ForcedClosures,
	)
	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
	m.ConnectsTotal.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

// SetRegistry records the registry sizes after a mutation.
func (m *Metrics) SetRegistry(rooms, receivers int) {
	if m == nil {
		return
	}
	m.Rooms.Set(float64(rooms))
	m.Receivers.Set(float64(receivers))
}

func (m *Metrics) Message(typ string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(typ).Inc()
}

func (m *Metrics) Error(code string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(code).Inc()
}

func (m *Metrics) Relay(typ string) {
	if m == nil {
		return
	}
	m.Relayed.WithLabelValues(typ).Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.DroppedSends.Inc()
}

func (m *Metrics) ForcedClose(reason string) {
	if m == nil {
		return
	}
	m.ForcedClosures.WithLabelValues(reason).Inc()
}
