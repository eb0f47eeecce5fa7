package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ChainPulse/internal/domain/repository"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	analyses   *prometheus.HistogramVec
	stages     *prometheus.HistogramVec
	fallbacks  *prometheus.CounterVec
	cacheTotal *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

var _ repository.Metrics = (*Recorder)(nil)

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chainpulse_analysis_duration_seconds",
				Help:    "Duration of full analysis calls in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind", "status"},
		),
		stages: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chainpulse_stage_duration_seconds",
				Help:    "Duration of individual analysis stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "method"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpulse_stage_fallbacks_total",
				Help: "Total number of stages served by their fallback method",
			},
			[]string{"stage", "reason"},
		),
		cacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpulse_fit_cache_requests_total",
				Help: "Fitted model cache lookups by result",
			},
			[]string{"stage", "result"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// ObserveAnalysis records one engine call.
func (r *Recorder) ObserveAnalysis(kind, status string, seconds float64) {
	r.analyses.WithLabelValues(kind, status).Observe(seconds)
}

// ObserveStage records one stage run.
func (r *Recorder) ObserveStage(stage, method string, seconds float64) {
	r.stages.WithLabelValues(stage, method).Observe(seconds)
}

func (r *Recorder) RecordFallback(stage, reason string) {
	r.fallbacks.WithLabelValues(stage, reason).Inc()
}

func (r *Recorder) RecordCache(stage string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(stage, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}
