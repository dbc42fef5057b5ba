package dominance

import "github.com/prometheus/client_golang/prometheus"

const (
	treeDom     = "dom"
	treePostDom = "postdom"

	resultHit  = "hit"
	resultMiss = "miss"
)

// metrics of a dominance analysis. The number of trees built or handed in by
// Update, less those released or reclaimed, is the number of entries.
type metrics struct {
	built     *prometheus.CounterVec
	updated   *prometheus.CounterVec
	released  *prometheus.CounterVec
	reclaimed *prometheus.CounterVec
	lookups   *prometheus.CounterVec
	entries   *prometheus.GaugeVec
}

func newMetrics(namespace string) *metrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dominance",
			Name:      name,
			Help:      help,
		}, labels)
	}
	return &metrics{
		built:     counter("built_total", "Trees built on a cache miss", "tree"),
		updated:   counter("updated_total", "Trees handed to the cache by Update", "tree"),
		released:  counter("released_total", "Trees released by the cache", "tree"),
		reclaimed: counter("reclaimed_total", "Trees taken out of the cache by Reclaim", "tree"),
		lookups:   counter("lookups_total", "Tree lookups by result", "tree", "result"),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dominance",
			Name:      "entries",
			Help:      "Trees currently cached",
		}, []string{"tree"}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.built, m.updated, m.released, m.reclaimed, m.lookups, m.entries}
}

// Describe implements prometheus.Collector.
func (m *metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
