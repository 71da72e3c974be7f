package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records search and rule activity. A nil *Metrics records nothing.
type Metrics struct {
	searches       prometheus.Counter
	solutions      prometheus.Counter
	searchDuration prometheus.Histogram
	ruleOutcomes   *prometheus.CounterVec
	atoms          prometheus.GaugeFunc
}

// NewMetrics registers the service metrics with reg. size reports the current
// number of stored atoms and may be nil.
func NewMetrics(reg prometheus.Registerer, size func() int) *Metrics {
	m := &Metrics{
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cogquery",
			Subsystem: "match",
			Name:      "searches_total",
			Help:      "Pattern searches started.",
		}),
		solutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cogquery",
			Subsystem: "match",
			Name:      "solutions_total",
			Help:      "Solutions returned by pattern searches.",
		}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cogquery",
			Subsystem: "match",
			Name:      "search_duration_seconds",
			Help:      "Wall time of pattern searches.",
			Buckets:   prometheus.DefBuckets,
		}),
		ruleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cogquery",
			Subsystem: "rule",
			Name:      "computations_total",
			Help:      "Rule computations by rule and outcome (derived, no_result, invalid, error).",
		}, []string{"rule", "outcome"}),
	}
	reg.MustRegister(m.searches, m.solutions, m.searchDuration, m.ruleOutcomes)

	if size != nil {
		m.atoms = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cogquery",
			Subsystem: "store",
			Name:      "atoms",
			Help:      "Atoms currently held by the store.",
		}, func() float64 { return float64(size()) })
		reg.MustRegister(m.atoms)
	}
	return m
}

func (m *Metrics) observeSearch(start time.Time, solutions int) {
	if m == nil {
		return
	}
	m.searches.Inc()
	m.solutions.Add(float64(solutions))
	m.searchDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRule(rule, outcome string) {
	if m == nil {
		return
	}
	m.ruleOutcomes.WithLabelValues(rule, outcome).Inc()
}
