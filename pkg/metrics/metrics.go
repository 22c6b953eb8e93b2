package metrics

import "github.com/prometheus/client_golang/prometheus"

// SamplerMetrics accounts sampling outcomes outside the hot-path table
// contract: every update is a single counter increment.
type SamplerMetrics struct {
	// Samples counts the samples accounted in the count table.
	Samples prometheus.Counter

	// Drops counts discarded samples by reason: "idle" for idle-task
	// filtering, "count_table_full" for refused new keys.
	Drops *prometheus.CounterVec

	// StackFailures counts captures that returned the negative
	// sentinel, by stack side ("user", "kernel"). These samples are
	// still accounted.
	StackFailures *prometheus.CounterVec
}

func NewSamplerMetrics(reg prometheus.Registerer) *SamplerMetrics {
	m := &SamplerMetrics{
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xprof_samples_total",
			Help: "Total number of samples accounted in the count table",
		}),
		Drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xprof_sample_drops_total",
			Help: "Total number of samples discarded, by reason",
		}, []string{"reason"}),
		StackFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xprof_stack_capture_failures_total",
			Help: "Total number of stack captures that failed, by stack side",
		}, []string{"stack"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Samples,
			m.Drops,
			m.StackFailures,
		)
	}

	return m
}

// NewTableGauges registers occupancy gauges for the two sampling
// tables. The len funcs are read at scrape time.
func NewTableGauges(reg prometheus.Registerer, stackLen, countLen func() float64) {
	if reg == nil {
		return
	}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "xprof_stack_table_rows",
			Help: "Number of distinct stack traces currently stored",
		}, stackLen),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "xprof_count_table_rows",
			Help: "Number of distinct stack count keys currently stored",
		}, countLen),
	)
}
