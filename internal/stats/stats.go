// Package stats provides Prometheus instrumentation for the messenger
// core: gauges for connection and presence counts, counters for event
// and message throughput.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider is the instrumentation surface consumed by the chat hub and
// the API layer. Tests use the noop MockProvider.
type Provider interface {
	ConnectionOpened()
	ConnectionClosed()
	SetOnlineUsers(n int)
	EventReceived(event string)
	MessageProcessed(kind string)
	ErrorOccurred(kind string)
}

type PrometheusProvider struct {
	activeConnections prometheus.Gauge
	onlineUsers       prometheus.Gauge
	eventsTotal       *prometheus.CounterVec
	messagesTotal     *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// NewPrometheusProvider registers the messenger collectors with reg and
// returns a ready Provider.
func NewPrometheusProvider(reg prometheus.Registerer) *PrometheusProvider {
	p := &PrometheusProvider{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "messenger_active_connections",
			Help: "Current number of active WebSocket connections",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "messenger_online_users",
			Help: "Current number of distinct users with at least one connection",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messenger_events_total",
			Help: "Total number of inbound client events processed",
		}, []string{"event"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messenger_messages_total",
			Help: "Total number of message lifecycle operations",
		}, []string{"kind"}), // kind = sent, read, edited, deleted, reacted
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messenger_errors_total",
			Help: "Total number of operation failures by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		p.activeConnections,
		p.onlineUsers,
		p.eventsTotal,
		p.messagesTotal,
		p.errorsTotal,
	)

	return p
}

func (p *PrometheusProvider) ConnectionOpened() {
	p.activeConnections.Inc()
}

func (p *PrometheusProvider) ConnectionClosed() {
	p.activeConnections.Dec()
}

func (p *PrometheusProvider) SetOnlineUsers(n int) {
	p.onlineUsers.Set(float64(n))
}

func (p *PrometheusProvider) EventReceived(event string) {
	p.eventsTotal.WithLabelValues(event).Inc()
}

func (p *PrometheusProvider) MessageProcessed(kind string) {
	p.messagesTotal.WithLabelValues(kind).Inc()
}

func (p *PrometheusProvider) ErrorOccurred(kind string) {
	p.errorsTotal.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
