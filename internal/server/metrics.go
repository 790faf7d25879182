// Package server exports relay counters and gauges to Prometheus through the
// Metrics type.
package server

import (
	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

// Rejection reasons recorded on gochat_frames_rejected_total.
const (
	reasonInvalidFrame     = "invalid_frame"
	reasonRateLimited      = "rate_limited"
	reasonInactiveSession  = "inactive_session"
	reasonMalformedCommand = "malformed_command"
	reasonFileTooLarge     = "file_too_large"
)

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	connectedClients prometheus.Gauge
	messagesStored   *prometheus.CounterVec
	messagesCleared  prometheus.Counter
	droppedSends     prometheus.Counter
	framesRejected   *prometheus.CounterVec
	storeFailures    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gochat_connected_clients",
			Help: "Number of WebSocket clients currently registered with the hub.",
		}),
		messagesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gochat_messages_stored_total",
			Help: "Messages appended to the store, by kind.",
		}, []string{"kind"}),
		messagesCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gochat_messages_cleared_total",
			Help: "Messages removed by /clear commands.",
		}),
		droppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gochat_dropped_sends_total",
			Help: "Frames not delivered because a client's send buffer was full or closed.",
		}),
		framesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gochat_frames_rejected_total",
			Help: "Inbound frames dropped without effect, by reason.",
		}, []string{"reason"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gochat_store_failures_total",
			Help: "Message store operations that returned an error, by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.connectedClients,
		m.messagesStored,
		m.messagesCleared,
		m.droppedSends,
		m.framesRejected,
		m.storeFailures,
	)
	return m
}

func (m *Metrics) setConnected(n int) {
	if m == nil {
		return
	}
	m.connectedClients.Set(float64(n))
}

func (m *Metrics) messageStored(kind protocol.Kind) {
	if m == nil {
		return
	}
	m.messagesStored.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) cleared(n int) {
	if m == nil {
		return
	}
	m.messagesCleared.Add(float64(n))
}

func (m *Metrics) droppedSend() {
	if m == nil {
		return
	}
	m.droppedSends.Inc()
}

func (m *Metrics) rejected(reason string) {
	if m == nil {
		return
	}
	m.framesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) storeFailed(op string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(op).Inc()
}
