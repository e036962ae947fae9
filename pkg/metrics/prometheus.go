package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	epochLoss     *prometheus.GaugeVec
	epochsTotal   prometheus.Counter
	batchDuration *prometheus.HistogramVec
	batchesTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	examples      *prometheus.GaugeVec
}

// New creates a metrics recorder registered on reg. A nil reg uses the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		epochLoss: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fintrain_epoch_loss",
				Help: "Average RMSE of the last finished epoch per phase",
			},
			[]string{"phase"},
		),
		epochsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "fintrain_epochs_total",
				Help: "Total number of finished epochs",
			},
		),
		batchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrain_batch_duration_seconds",
				Help:    "Duration of one batch step in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"phase"},
		),
		batchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrain_batches_total",
				Help: "Total number of processed batches",
			},
			[]string{"phase"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrain_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"kind"},
		),
		examples: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fintrain_examples",
				Help: "Number of aligned examples per split",
			},
			[]string{"split"},
		),
	}
}

// RecordEpochLoss records the averaged loss of a finished phase. The train
// phase also counts the epoch.
func (r *Recorder) RecordEpochLoss(phase string, loss float64) {
	r.epochLoss.WithLabelValues(phase).Set(loss)
	if phase == "train" {
		r.epochsTotal.Inc()
	}
}

// RecordBatch records the duration of one batch step.
func (r *Recorder) RecordBatch(phase string, seconds float64) {
	r.batchesTotal.WithLabelValues(phase).Inc()
	r.batchDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordExamples records the size of a split.
func (r *Recorder) RecordExamples(split string, n int) {
	r.examples.WithLabelValues(split).Set(float64(n))
}
