// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace is the namespace of every metric registered by [NewMetrics].
const MetricsNamespace = "socol"

// Metrics collects [*Registry] metrics.
//
// A nil *Metrics is valid and collects nothing. Unlike the rest of the
// package, the underlying collectors are safe for concurrent use, so a
// scraper may read them while another goroutine drives [*Registry.Update].
type Metrics struct {
	accepts        *prometheus.CounterVec
	bytesReceived  *prometheus.CounterVec
	nodes          *prometheus.GaugeVec
	nodesAdded     *prometheus.CounterVec
	nodesRelinked  *prometheus.CounterVec
	nodesTornDown  *prometheus.CounterVec
	updateDuration prometheus.Histogram
}

// NewMetrics creates a [*Metrics] and registers its collectors with reg.
//
// Registering twice with the same [prometheus.Registerer] panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		accepts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "accepts_total",
			Help:      "Total number of connections accepted by listeners",
		}, []string{"family"}),

		bytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "received_bytes_total",
			Help:      "Total number of bytes read on behalf of on-data callbacks",
		}, []string{"partition"}),

		nodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "nodes",
			Help:      "Number of registered nodes",
		}, []string{"partition"}),

		nodesAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "nodes_added_total",
			Help:      "Total number of nodes added to the registry",
		}, []string{"partition"}),

		nodesRelinked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "nodes_relinked_total",
			Help:      "Total number of connecting nodes moved to an established partition",
		}, []string{"partition"}),

		nodesTornDown: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "nodes_torn_down_total",
			Help:      "Total number of nodes torn down by status",
		}, []string{"partition", "status"}),

		updateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "update_duration_seconds",
			Help:      "Duration of a registry update pass in seconds",
			Buckets:   []float64{1e-5, 1e-4, 1e-3, 1e-2, 1e-1, 1},
		}),
	}
}

func (m *Metrics) nodeAdded(p Partition) {
	if m == nil {
		return
	}
	m.nodesAdded.WithLabelValues(p.String()).Inc()
	m.nodes.WithLabelValues(p.String()).Inc()
}

func (m *Metrics) nodeRelinked(from, to Partition) {
	if m == nil {
		return
	}
	m.nodesRelinked.WithLabelValues(to.String()).Inc()
	m.nodes.WithLabelValues(from.String()).Dec()
	m.nodes.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) nodeTornDown(p Partition, status SocketError) {
	if m == nil {
		return
	}
	m.nodesTornDown.WithLabelValues(p.String(), status.String()).Inc()
	m.nodes.WithLabelValues(p.String()).Dec()
}

func (m *Metrics) connectionAccepted(family Family) {
	if m == nil {
		return
	}
	m.accepts.WithLabelValues(family.String()).Inc()
}

func (m *Metrics) received(p Partition, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.bytesReceived.WithLabelValues(p.String()).Add(float64(count))
}

func (m *Metrics) updateDone(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.updateDuration.Observe(elapsed.Seconds())
}
