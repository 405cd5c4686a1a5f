// Package metric provides Prometheus metrics for tokstash.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tokstash-go/internal/core/domain"
)

// RecordCounter reports how many records a partition holds.
type RecordCounter interface {
	Count(p domain.Partition) int
}

// Collector reads record counts from a backend at scrape time.
type Collector struct {
	counter RecordCounter
	records *prometheus.Desc
}

// NewCollector creates a collector for counter.
func NewCollector(counter RecordCounter) *Collector {
	return &Collector{
		counter: counter,
		records: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "records"),
			"Number of stored records per partition",
			[]string{"partition"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range []domain.Partition{domain.PartitionActive, domain.PartitionExpired} {
		ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(c.counter.Count(p)), string(p))
	}
}

// NewBuildInfo returns a constant gauge carrying version labels.
func NewBuildInfo(version, commit, goVersion string) prometheus.Collector {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information; value is always 1",
		ConstLabels: prometheus.Labels{
			"version":    version,
			"commit":     commit,
			"go_version": goVersion,
		},
	})
	g.Set(1)
	return g
}
