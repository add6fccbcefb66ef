package metric

import "github.com/prometheus/client_golang/prometheus"

// GaugeSource reports a point-in-time value for a collected gauge, such as
// dnscache.Cache's entry count or a topology.Distance pool's replica count.
type GaugeSource func() float64

// Collector exposes a set of named gauges pulled on demand at scrape time,
// rather than pushed as they change. It implements prometheus.Collector.
type Collector struct {
	sources map[string]collectorSource
}

type collectorSource struct {
	desc   *prometheus.Desc
	source GaugeSource
}

// NewCollector creates an empty on-demand gauge collector.
func NewCollector() *Collector {
	return &Collector{sources: make(map[string]collectorSource)}
}

// Add registers a named gauge backed by source, to be read every scrape.
// name must be a valid, already fully-qualified Prometheus metric name.
func (c *Collector) Add(name, help string, source GaugeSource) {
	c.sources[name] = collectorSource{
		desc:   prometheus.NewDesc(name, help, nil, nil),
		source: source,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.sources {
		ch <- s.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.sources {
		ch <- prometheus.MustNewConstMetric(s.desc, prometheus.GaugeValue, s.source())
	}
}
