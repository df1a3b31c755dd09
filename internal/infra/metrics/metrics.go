package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// Metrics holds the bot's Prometheus collectors
type Metrics struct {
	received   prometheus.Counter
	sent       prometheus.Counter
	dropped    *prometheus.CounterVec
	commands   *prometheus.CounterVec
	cmdLatency *prometheus.HistogramVec
	health     prometheus.Gauge
	state      *prometheus.GaugeVec
	reconnects prometheus.Counter
	wsClients  prometheus.Gauge
}

var states = []domain.ConnState{
	domain.StateDisconnected,
	domain.StateConnecting,
	domain.StateConnected,
	domain.StateReconnecting,
	domain.StateStopped,
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botdeck_messages_received_total",
			Help: "Inbound message events accepted by the router",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botdeck_messages_sent_total",
			Help: "Messages sent through the gateway",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botdeck_events_dropped_total",
			Help: "Events or commands dropped without a reply",
		}, []string{"reason"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botdeck_commands_total",
			Help: "Command executions by outcome",
		}, []string{"command", "status"}),
		cmdLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "botdeck_command_duration_seconds",
			Help:    "Command handler latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "botdeck_connection_health",
			Help: "Connection health score, 0 to 100",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "botdeck_connection_state",
			Help: "1 for the current lifecycle state, 0 otherwise",
		}, []string{"state"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botdeck_reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "botdeck_ws_clients",
			Help: "Connected observer clients",
		}),
	}
	reg.MustRegister(
		m.received,
		m.sent,
		m.dropped,
		m.commands,
		m.cmdLatency,
		m.health,
		m.state,
		m.reconnects,
		m.wsClients,
	)
	m.state.WithLabelValues(string(domain.StateDisconnected)).Set(1)
	return m
}

// MessageReceived counts an accepted inbound event
func (m *Metrics) MessageReceived() { m.received.Inc() }

// MessageSent counts an outbound message
func (m *Metrics) MessageSent() { m.sent.Inc() }

// Dropped counts a silently dropped event
func (m *Metrics) Dropped(reason string) { m.dropped.WithLabelValues(reason).Inc() }

// CommandExecuted records a command run
func (m *Metrics) CommandExecuted(name string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.commands.WithLabelValues(name, status).Inc()
	m.cmdLatency.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ConnectionState marks state as current and records health
func (m *Metrics) ConnectionState(state domain.ConnState, health int) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(string(s)).Set(v)
	}
	m.health.Set(float64(health))
}

// ReconnectScheduled counts a scheduled reconnect
func (m *Metrics) ReconnectScheduled() { m.reconnects.Inc() }

// ClientsChanged tracks the observer client count
func (m *Metrics) ClientsChanged(n int) { m.wsClients.Set(float64(n)) }
