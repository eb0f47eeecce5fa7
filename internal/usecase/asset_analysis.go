package usecase

import (
	"context"
	"fmt"
	"time"

	"ChainPulse/internal/domain/models"
	domrepo "ChainPulse/internal/domain/repository"
	"ChainPulse/pkg/logger"
	"ChainPulse/pkg/util"
)

// Analyzer is the engine surface the outer layers depend on.
type Analyzer interface {
	Analyze(ctx context.Context, kind models.IndicatorKind, series models.Series, cfg models.AnalysisConfig) (*models.Analysis, error)
}

var _ Analyzer = (*Engine)(nil)

// AssetAnalysis loads a stored series for an asset and analyzes it.
type AssetAnalysis struct {
	provider domrepo.SeriesProvider
	engine   Analyzer
	log      *logger.Logger
}

func NewAssetAnalysis(provider domrepo.SeriesProvider, engine Analyzer, l *logger.Logger) *AssetAnalysis {
	if l == nil {
		l = logger.Nop()
	}
	return &AssetAnalysis{provider: provider, engine: engine, log: l.With(logger.Component("asset_analysis"))}
}

// Run loads q from the provider and runs the engine with cfg. An empty
// result set is InvalidInput; provider failures are returned wrapped.
func (a *AssetAnalysis) Run(ctx context.Context, q models.SeriesQuery, cfg models.AnalysisConfig) (*models.Analysis, error) {
	if !models.IsValidKind(q.Kind) {
		return nil, models.InvalidInput("kind", "unsupported indicator kind %q", q.Kind)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, models.InvalidInput("to", "must not be before from")
	}

	start := time.Now()
	series, err := a.provider.LoadSeries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load series %s/%s: %w", q.Asset, q.Kind, err)
	}
	if len(series) == 0 {
		return nil, models.InvalidInput("asset", "no %s data for %q in range", q.Kind, q.Asset)
	}
	a.log.Debug("series loaded",
		logger.String("asset", q.Asset),
		logger.String("kind", string(q.Kind)),
		logger.Int("records", len(series)),
		logger.Duration("duration", time.Since(start)),
	)

	res, err := a.engine.Analyze(ctx, q.Kind, series, cfg)
	if err != nil {
		return nil, err
	}
	res.Asset = q.Asset
	return res, nil
}

// ParseRange parses optional bounds in any form util.ParseTime accepts and
// widens them to whole days.
func ParseRange(from, to string) (time.Time, time.Time, error) {
	f, err := parseBound("from", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := parseBound("to", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	f, t = util.DayBounds(f, t)
	return f, t, nil
}

func parseBound(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, models.InvalidInput(field, "expected RFC 3339, YYYY-MM-DD or unix seconds, got %q", s)
	}
	return t, nil
}
