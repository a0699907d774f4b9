// Package metrics exports pipeline metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "moments"

// Metrics implements processor.Observer. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	processingDuration *prometheus.HistogramVec
	stageFallbacks     *prometheus.CounterVec
	probeFallbacks     prometheus.Counter
	retries            prometheus.Counter
	ingests            *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "processing_duration_seconds",
				Help:      "Histogram of video processing duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"}, // success, validation_error, error
		),
		stageFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_fallbacks_total",
				Help:      "Total number of transform stages that fell back to pass-through",
			},
			[]string{"stage"},
		),
		probeFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_fallbacks_total",
				Help:      "Total number of probes answered by the size-based estimate",
			},
		),
		retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "processing_retries_total",
				Help:      "Total number of transform pipeline retries",
			},
		),
		ingests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_jobs_total",
				Help:      "Total number of ingest jobs by status",
			},
			[]string{"status"}, // published, rejected, failed
		),
	}
	for _, c := range []prometheus.Collector{m.processingDuration, m.stageFallbacks, m.probeFallbacks, m.retries, m.ingests} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ProbeFallback() {
	if m == nil {
		return
	}
	m.probeFallbacks.Inc()
}

func (m *Metrics) StageFallback(stage string) {
	if m == nil {
		return
	}
	m.stageFallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) Processed(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.processingDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// IngestFinished counts a finished ingest job.
func (m *Metrics) IngestFinished(status string) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(status).Inc()
}
