package repository

import (
	"context"
	"errors"

	"ChainPulse/internal/domain/models"
)

// ErrUnavailable reports that a backing store refused work, e.g. because its
// circuit breaker is open. Callers may retry later.
var ErrUnavailable = errors.New("store unavailable")

// SeriesProvider supplies raw on-chain series for an asset. Implementations
// return records in ascending timestamp order.
type SeriesProvider interface {
	LoadSeries(ctx context.Context, q models.SeriesQuery) (models.Series, error)
	Health(ctx context.Context) error
}

// ResultPublisher hands finished analyses to downstream consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, msg *models.AnalysisResultMessage) error
	Close() error
}

type Metrics interface {
	ObserveAnalysis(kind, status string, seconds float64)
	ObserveStage(stage, method string, seconds float64)
	RecordFallback(stage, reason string)
	RecordCache(stage string, hit bool)
	RecordError(kind string)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveAnalysis(string, string, float64) {}
func (NopMetrics) ObserveStage(string, string, float64)    {}
func (NopMetrics) RecordFallback(string, string)           {}
func (NopMetrics) RecordCache(string, bool)                {}
func (NopMetrics) RecordError(string)                      {}

var _ Metrics = NopMetrics{}
