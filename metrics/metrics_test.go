package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// newTestMetrics builds unregistered collectors so tests stay off the default
// registry.
func newTestMetrics() *Metrics {
	return &Metrics{
		ActiveConnections:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_active_connections"}),
		ActiveRooms:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_active_rooms"}),
		RelayedMessages:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_relayed_total"}, []string{"type"}),
		DroppedMessages:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_dropped_total"}, []string{"reason"}),
		ChatPersistFailures: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_persist_failures_total"}),
		ChatsClearedTotal:   prometheus.NewCounter(prometheus.CounterOpts{Name: "test_cleared_total"}),
	}
}

func TestRecorders(t *testing.T) {
	m := newTestMetrics()

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConnections))

	m.RoomCreated()
	m.RoomDeleted()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRooms))

	m.Relayed("chat")
	m.Relayed("chat")
	m.Relayed("offer")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RelayedMessages.WithLabelValues("chat")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RelayedMessages))

	m.Dropped("slow_consumer")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedMessages.WithLabelValues("slow_consumer")))

	m.ChatPersistFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatPersistFailures))

	m.ChatsCleared(5)
	m.ChatsCleared(0)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ChatsClearedTotal))
}

func TestNilRecordersAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.RoomCreated()
		m.RoomDeleted()
		m.Relayed("chat")
		m.Dropped("malformed")
		m.ChatPersistFailed()
		m.ChatsCleared(3)
	})
}

func TestNew_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, New(), New())
}
