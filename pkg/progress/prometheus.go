package progress

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink records the same events as SlogSink but as metrics,
// intended for long-running pensieve processes with a scraped /metrics
// endpoint rather than a one-shot CLI run.
type PrometheusSink struct {
	windowSize      prometheus.Gauge
	transactionZero prometheus.Gauge
	phaseApplied    *prometheus.CounterVec
	phaseSkipped    *prometheus.CounterVec
	linesRead       prometheus.Gauge
	runInfo         *prometheus.GaugeVec
}

// NewPrometheusSink registers pensieve's progress metrics against reg. Pass
// a fresh *prometheus.Registry in tests to avoid colliding with the default
// global registry.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	return &PrometheusSink{
		windowSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pensieve_normaliser_window_operations",
			Help: "Number of operations found within the alignment window.",
		}),
		transactionZero: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pensieve_normaliser_transaction_zero_index",
			Help: "Operation index chosen as the alignment anchor.",
		}),
		phaseApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pensieve_normaliser_phase_applied_total",
			Help: "Operations applied per normalisation phase.",
		}, []string{"phase"}),
		phaseSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pensieve_normaliser_phase_skipped_total",
			Help: "Operations skipped per normalisation phase.",
		}, []string{"phase"}),
		linesRead: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pensieve_parser_lines_read",
			Help: "Lines read from the change log so far.",
		}),
		runInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pensieve_normaliser_run_info",
			Help: "Always 1; labeled with the run_id of the current normalisation run for correlation with logs.",
		}, []string{"run_id"}),
	}
}

func (p *PrometheusSink) WindowFound(count int, _ int) {
	p.windowSize.Set(float64(count))
}

func (p *PrometheusSink) WindowEmpty(fallbackIdx int) {
	p.windowSize.Set(0)
	p.transactionZero.Set(float64(fallbackIdx))
}

func (p *PrometheusSink) TransactionZero(idx int) {
	p.transactionZero.Set(float64(idx))
}

func (p *PrometheusSink) PhaseComplete(phase string, applied, skipped int) {
	p.phaseApplied.WithLabelValues(phase).Add(float64(applied))
	p.phaseSkipped.WithLabelValues(phase).Add(float64(skipped))
}

func (p *PrometheusSink) LinesRead(n int) {
	p.linesRead.Set(float64(n))
}

// WithRunID sets the run_info gauge for runID and returns p unchanged:
// unlike SlogSink, a single registered metric set is shared across runs,
// so correlation happens through the run_info label rather than a
// per-run instance.
func (p *PrometheusSink) WithRunID(runID uuid.UUID) Sink {
	p.runInfo.WithLabelValues(runID.String()).Set(1)
	return p
}
