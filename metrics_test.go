// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	require.NotNil(t, m.Counter)
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	require.NotNil(t, m.Gauge)
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	require.NotNil(t, m.Histogram)
	return m.GetHistogram().GetSampleCount()
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.nodeAdded(StreamIPv4)
		m.nodeRelinked(ConnectingIPv4, StreamIPv4)
		m.nodeTornDown(StreamIPv4, Closed)
		m.connectionAccepted(IPv4)
		m.received(DatagramIPv6, 10)
		m.updateDone(time.Millisecond)
	})
}

func TestNewMetricsRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	assert.Panics(t, func() {
		NewMetrics(reg)
	})

	families, err := reg.Gather()
	require.NoError(t, err)
	// Vectors without children are not gathered
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Equal(t, []string{"socol_update_duration_seconds"}, names)
}

func TestRegistryMetrics(t *testing.T) {
	sn := newStubNet()
	sn.ops.RecvFromFunc = func(h Handle, buf []byte) (int, Address, error) {
		return copy(buf, "ping"), NewIPAddress(10, 0, 0, 7, 9999), nil
	}
	pending := []Handle{501}
	sn.ops.AcceptFunc = func(h Handle) (Handle, Address, error) {
		if len(pending) <= 0 {
			return InvalidHandle, nil, ErrWouldBlock
		}
		client := pending[0]
		pending = pending[1:]
		return client, NewIPAddress(10, 0, 0, 9, 4444), nil
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	cfg := newStubConfig(sn.ops)
	cfg.Allocator = sn.alloc
	cfg.Metrics = metrics
	reg := NewRegistry(cfg, DefaultSLogger())

	listener, err := reg.AddListener(8080, IPv4)
	require.NoError(t, err)
	listener.OnConnection(func(l Node, sock *Socket, peer Address) {
		_, err := l.Registry().Adopt(sock)
		require.NoError(t, err)
	})
	outbound, err := reg.AddOutbound(NewIPAddress(10, 0, 0, 1, 80))
	require.NoError(t, err)
	datagram, err := reg.AddDatagram(53, IPv4)
	require.NoError(t, err)
	sn.ready[listener.Socket().Handle()] = StateNewConnectionAccepted
	sn.ready[outbound.Socket().Handle()] = StateConnectSucceeded
	sn.ready[datagram.Socket().Handle()] = StateReadable

	reg.Update()
	clear(sn.ready)
	outbound.Close()
	reg.Update()

	assert.Equal(t, 1.0, counterValue(t, metrics.accepts.WithLabelValues("ipv4")))
	assert.Equal(t, 4.0, counterValue(t, metrics.bytesReceived.WithLabelValues("datagram_ipv4")))
	assert.Equal(t, 1.0, counterValue(t, metrics.nodesAdded.WithLabelValues("listening_ipv4")))
	assert.Equal(t, 1.0, counterValue(t, metrics.nodesAdded.WithLabelValues("connecting_ipv4")))
	assert.Equal(t, 1.0, counterValue(t, metrics.nodesAdded.WithLabelValues("stream_ipv4")))
	assert.Equal(t, 1.0, counterValue(t, metrics.nodesRelinked.WithLabelValues("stream_ipv4")))
	assert.Equal(t, 1.0, counterValue(t, metrics.nodesTornDown.WithLabelValues("stream_ipv4", "closed")))
	assert.Equal(t, 0.0, gaugeValue(t, metrics.nodes.WithLabelValues("connecting_ipv4")))
	assert.Equal(t, 1.0, gaugeValue(t, metrics.nodes.WithLabelValues("stream_ipv4")))
	assert.Equal(t, 1.0, gaugeValue(t, metrics.nodes.WithLabelValues("datagram_ipv4")))
	assert.Equal(t, uint64(2), histogramCount(t, metrics.updateDuration))
}
