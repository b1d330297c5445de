package writer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exports a Writer's queue, state and transaction
// counters.
type MetricsCollector struct {
	stats    func() Stats
	state    func() State
	duration prometheus.Histogram

	queueDepthDesc    *prometheus.Desc
	queueCapacityDesc *prometheus.Desc
	stateDesc         *prometheus.Desc
	transactionsDesc  *prometheus.Desc
	preparesDesc      *prometheus.Desc
}

// Metrics returns a collector for w. Register it once.
func (w *Writer[Req, Res]) Metrics() *MetricsCollector {
	return &MetricsCollector{
		stats:    w.Stats,
		state:    w.State,
		duration: w.duration,
		queueDepthDesc: prometheus.NewDesc(
			"postwriter_writer_queue_depth",
			"Requests waiting for the writer",
			nil,
			nil,
		),
		queueCapacityDesc: prometheus.NewDesc(
			"postwriter_writer_queue_capacity",
			"Size of the writer queue",
			nil,
			nil,
		),
		stateDesc: prometheus.NewDesc(
			"postwriter_writer_state",
			"1 for the writer's current lifecycle state",
			[]string{"state"},
			nil,
		),
		transactionsDesc: prometheus.NewDesc(
			"postwriter_writer_transactions_total",
			"Request transactions by outcome",
			[]string{"outcome"},
			nil,
		),
		preparesDesc: prometheus.NewDesc(
			"postwriter_writer_prepares_total",
			"Statements compiled by the writer connection",
			nil,
			nil,
		),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueDepthDesc
	ch <- c.queueCapacityDesc
	ch <- c.stateDesc
	ch <- c.transactionsDesc
	ch <- c.preparesDesc
	c.duration.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.queueDepthDesc, prometheus.GaugeValue, float64(s.QueueDepth))
	ch <- prometheus.MustNewConstMetric(c.queueCapacityDesc, prometheus.GaugeValue, float64(s.QueueCapacity))

	current := c.state()
	for _, st := range []State{StateStarting, StateRunning, StateDraining, StateClosed} {
		v := 0.0
		if st == current {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.stateDesc, prometheus.GaugeValue, v, st.String())
	}

	ch <- prometheus.MustNewConstMetric(c.transactionsDesc, prometheus.CounterValue, float64(s.Commits), "commit")
	ch <- prometheus.MustNewConstMetric(c.transactionsDesc, prometheus.CounterValue, float64(s.Rollbacks), "rollback")
	ch <- prometheus.MustNewConstMetric(c.preparesDesc, prometheus.CounterValue, float64(s.Prepares))
	c.duration.Collect(ch)
}
