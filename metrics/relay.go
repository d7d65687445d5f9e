package metrics

import "github.com/prometheus/client_golang/prometheus"

// Relay holds connection and routing metrics. A nil *Relay records nothing.
type Relay struct {
	OpenConnections  prometheus.Gauge
	RoleConnections  *prometheus.GaugeVec
	MessagesRouted   prometheus.Counter
	Deliveries       *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	ClientErrors     *prometheus.CounterVec
}

// NewRelay creates and registers relay metrics on the given registry.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "open_connections",
			Help:      "Number of open WebSocket connections, authenticated or not.",
		}),
		RoleConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "connections",
			Help:      "Number of registered connections, by role.",
		}, []string{"role"}),
		MessagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "messages_routed_total",
			Help:      "Total number of controller messages routed.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "deliveries_total",
			Help:      "Total number of envelopes queued for delivery, by target role.",
		}, []string{"role"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "delivery_failures_total",
			Help:      "Total number of envelopes dropped because a connection could not accept them, by target role.",
		}, []string{"role"}),
		ClientErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "client_errors_total",
			Help:      "Total number of error replies sent to clients, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.OpenConnections, m.RoleConnections, m.MessagesRouted, m.Deliveries, m.DeliveryFailures, m.ClientErrors)
	return m
}

func (m *Relay) ConnectionOpened() {
	if m != nil {
		m.OpenConnections.Inc()
	}
}

func (m *Relay) ConnectionClosed() {
	if m != nil {
		m.OpenConnections.Dec()
	}
}

func (m *Relay) RoleJoined(role string) {
	if m != nil {
		m.RoleConnections.WithLabelValues(role).Inc()
	}
}

func (m *Relay) RoleLeft(role string) {
	if m != nil {
		m.RoleConnections.WithLabelValues(role).Dec()
	}
}

func (m *Relay) Routed() {
	if m != nil {
		m.MessagesRouted.Inc()
	}
}

func (m *Relay) Delivered(role string) {
	if m != nil {
		m.Deliveries.WithLabelValues(role).Inc()
	}
}

func (m *Relay) DeliveryFailed(role string) {
	if m != nil {
		m.DeliveryFailures.WithLabelValues(role).Inc()
	}
}

func (m *Relay) ClientError(reason string) {
	if m != nil {
		m.ClientErrors.WithLabelValues(reason).Inc()
	}
}
