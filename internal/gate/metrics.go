package gate

import (
	"github.com/prometheus/client_golang/prometheus"

	"stagegate/internal/stage"
)

// Metrics holds the prometheus collectors updated by [Gate.Resolve].
type Metrics struct {
	Resolutions       prometheus.Counter
	BaselineFallbacks prometheus.Counter
	EvidenceFailures  prometheus.Counter
	StageStatus       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagegate_resolutions_total",
			Help: "Number of pipeline state resolutions.",
		}),
		BaselineFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagegate_baseline_fallbacks_total",
			Help: "Resolutions that used the fallback baseline after a fetch failure.",
		}),
		EvidenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagegate_evidence_failures_total",
			Help: "Resolutions where the evidence store could not be read.",
		}),
		StageStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stagegate_stage_status",
			Help: "Current stage status: 0 locked, 1 available, 2 completed.",
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.Resolutions, m.BaselineFallbacks, m.EvidenceFailures, m.StageStatus)
	}
	return m
}

func (m *Metrics) observe(st stage.State) {
	m.Resolutions.Inc()
	for _, s := range stage.All() {
		m.StageStatus.WithLabelValues(s.String()).Set(float64(st[s].Rank()))
	}
}
