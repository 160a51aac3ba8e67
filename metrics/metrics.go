package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveConnections   prometheus.Gauge
	ActiveRooms         prometheus.Gauge
	RelayedMessages     *prometheus.CounterVec
	DroppedMessages     *prometheus.CounterVec
	ChatPersistFailures prometheus.Counter
	ChatsClearedTotal   prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// New returns the process-wide metrics, registering them on first use.
func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "drawroom_active_connections",
				Help: "Current number of authenticated websocket connections",
			}),
			ActiveRooms: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "drawroom_active_rooms",
				Help: "Current number of rooms with at least one member",
			}),
			RelayedMessages: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "drawroom_relayed_messages_total",
				Help: "Inbound envelopes routed to peers, by type",
			}, []string{"type"}),
			DroppedMessages: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "drawroom_dropped_messages_total",
				Help: "Inbound envelopes or deliveries dropped, by reason",
			}, []string{"reason"}),
			ChatPersistFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "drawroom_chat_persist_failures_total",
				Help: "Chat messages not broadcast because persisting them failed",
			}),
			ChatsClearedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "drawroom_chats_cleared_total",
				Help: "Chat entries removed by room clears",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) ConnectionOpened() {
	if m == nil || m.ActiveConnections == nil {
		return
	}
	m.ActiveConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil || m.ActiveConnections == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) RoomCreated() {
	if m == nil || m.ActiveRooms == nil {
		return
	}
	m.ActiveRooms.Inc()
}

func (m *Metrics) RoomDeleted() {
	if m == nil || m.ActiveRooms == nil {
		return
	}
	m.ActiveRooms.Dec()
}

func (m *Metrics) Relayed(msgType string) {
	if m == nil || m.RelayedMessages == nil {
		return
	}
	m.RelayedMessages.WithLabelValues(msgType).Inc()
}

// Dropped reasons: malformed, unknown_type, rate_limited, slow_consumer, unknown_user.
func (m *Metrics) Dropped(reason string) {
	if m == nil || m.DroppedMessages == nil {
		return
	}
	m.DroppedMessages.WithLabelValues(reason).Inc()
}

func (m *Metrics) ChatPersistFailed() {
	if m == nil || m.ChatPersistFailures == nil {
		return
	}
	m.ChatPersistFailures.Inc()
}

func (m *Metrics) ChatsCleared(n int) {
	if m == nil || m.ChatsClearedTotal == nil || n <= 0 {
		return
	}
	m.ChatsClearedTotal.Add(float64(n))
}
