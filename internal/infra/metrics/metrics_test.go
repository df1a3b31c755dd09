package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.MessageReceived()
	m.MessageReceived()
	m.MessageSent()
	m.Dropped("cooldown")
	m.CommandExecuted("ping", nil, time.Millisecond)
	m.CommandExecuted("ping", errors.New("x"), time.Millisecond)
	m.ReconnectScheduled()
	m.ClientsChanged(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.received))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("cooldown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("ping", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("ping", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.wsClients))
}

func TestMetrics_ConnectionStateIsExclusive(t *testing.T) {
	m := New(prometheus.NewRegistry())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("disconnected")))

	m.ConnectionState(domain.StateReconnecting, 80)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("disconnected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("reconnecting")))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.health))
}
