package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stats is the state sampled on every scrape.
type Stats interface {
	KeyCount() int
	ReplicaCount() int
	ReplicationOffset() int64
}

// Collector exports Stats as gauges.
type Collector struct {
	stats Stats

	keys     *prometheus.Desc
	replicas *prometheus.Desc
	offset   *prometheus.Desc
}

// NewCollector creates a collector reading from stats.
func NewCollector(stats Stats) *Collector {
	return &Collector{
		stats: stats,
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "keys"),
			"Number of keys in the live store",
			nil, nil),
		replicas: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "replication", "connected_replicas"),
			"Number of attached replicas",
			nil, nil),
		offset: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "replication", "offset_bytes"),
			"Current replication offset",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.replicas
	ch <- c.offset
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(c.stats.KeyCount()))
	ch <- prometheus.MustNewConstMetric(c.replicas, prometheus.GaugeValue, float64(c.stats.ReplicaCount()))
	ch <- prometheus.MustNewConstMetric(c.offset, prometheus.GaugeValue, float64(c.stats.ReplicationOffset()))
}
