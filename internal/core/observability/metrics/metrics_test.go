package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/zeusync/zeusnet/internal/core/events/bus"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("test"))

	m.ReceivedBatch(3)
	m.ReceivedBatch(0)
	m.ReceivedPackets(5)
	m.Dropped(ReasonMalformed)
	m.Dropped(ReasonMalformed)
	m.Sent(120)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed(true)
	m.SetInstances("Arena", 1)
	m.SetWaiting("Arena", 2)
	m.ObserveTick("Arena", 3*time.Millisecond)
	m.OnPublish("level", "entity.moved", nil)
	m.OnDelivered("level", "entity.moved", 1, nil, time.Millisecond)
	m.OnDelivered("level", "entity.moved", 1, assert.AnError, time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.datagramsReceived))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.packetsReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.packetsDropped.WithLabelValues(ReasonMalformed)))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.bytesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictedSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.waitingSessions.WithLabelValues("Arena")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tickDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entityEvents.WithLabelValues("entity.moved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventFailures.WithLabelValues("entity.moved")))

	count, err := testutil.GatherAndCount(reg, "test_transport_receive_batch_size")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ReceivedBatch(1)
		m.Dropped(ReasonUnknown)
		m.Sent(1)
		m.SessionOpened()
		m.SessionClosed(false)
		m.SetInstances("x", 1)
		m.SetWaiting("x", 1)
		m.ObserveTick("x", time.Second)
		m.OnPublish("x", "y", nil)
		m.OnDelivered("x", "y", 0, assert.AnError, 0)
	})

	var _ bus.EventBusObserver = m
}
