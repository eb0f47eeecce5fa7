package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"ChainPulse/internal/domain/models"
	domrepo "ChainPulse/internal/domain/repository"
	"ChainPulse/pkg/logger"
)

// Schema creates the tables CHSeriesProvider reads. Safe to run repeatedly.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS onchain_metrics (
        asset LowCardinality(String),
        t     DateTime,
        field LowCardinality(String),
        value Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (asset, field, t)`,
	`CREATE TABLE IF NOT EXISTS utxo_cohorts (
        asset    LowCardinality(String),
        t        DateTime,
        age_days Float64,
        value    Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (asset, t, age_days)`,
}

// kindFields lists the onchain_metrics fields each pivoted kind needs.
var kindFields = map[models.IndicatorKind][]string{
	models.KindHashRibbon:       {models.FieldDifficulty, models.FieldHashRate, models.FieldPrice},
	models.KindIssuanceMultiple: {models.FieldDailyIssuance, models.FieldHashRate, models.FieldPrice},
}

// BreakerConfig tunes the circuit breaker around ClickHouse queries.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// SeriesProviderOption configures CHSeriesProvider.
type SeriesProviderOption func(*CHSeriesProvider)

// WithMaxRows caps the number of timestamps one query may return.
func WithMaxRows(n int) SeriesProviderOption {
	return func(p *CHSeriesProvider) {
		if n > 0 {
			p.maxRows = n
		}
	}
}

// WithBreaker replaces the default breaker settings.
func WithBreaker(bc BreakerConfig) SeriesProviderOption {
	return func(p *CHSeriesProvider) { p.breakerCfg = bc }
}

// WithProviderLogger injects a structured logger.
func WithProviderLogger(l *logger.Logger) SeriesProviderOption {
	return func(p *CHSeriesProvider) {
		if l != nil {
			p.l = l
		}
	}
}

// WithProviderClock overrides the clock used for open-ended ranges.
func WithProviderClock(now func() time.Time) SeriesProviderOption {
	return func(p *CHSeriesProvider) { p.now = now }
}

// CHSeriesProvider implements SeriesProvider backed by ClickHouse.
type CHSeriesProvider struct {
	db         *sql.DB
	cb         *gobreaker.CircuitBreaker
	breakerCfg BreakerConfig
	maxRows    int
	now        func() time.Time
	l          *logger.Logger
}

var _ domrepo.SeriesProvider = (*CHSeriesProvider)(nil)

// NewCHSeriesProvider builds a provider over db.
func NewCHSeriesProvider(db *sql.DB, opts ...SeriesProviderOption) *CHSeriesProvider {
	p := &CHSeriesProvider{
		db:      db,
		maxRows: 20000,
		now:     time.Now,
		l:       logger.Nop(),
		breakerCfg: BreakerConfig{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			FailureRatio: 0.6,
			MinRequests:  5,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.l = p.l.With(logger.Component("clickhouse_series"))
	p.cb = gobreaker.NewCircuitBreaker(p.breakerSettings())
	return p
}

func (p *CHSeriesProvider) breakerSettings() gobreaker.Settings {
	bc := p.breakerCfg
	return gobreaker.Settings{
		Name:        "clickhouse_series",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= bc.FailureRatio
		},
		// A caller giving up says nothing about the database.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.l.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	}
}

// State exposes the breaker state for health reporting.
func (p *CHSeriesProvider) State() gobreaker.State { return p.cb.State() }

// LoadSeries returns the latest q.Limit timestamps of q.Asset within
// [q.From, q.To], oldest first.
func (p *CHSeriesProvider) LoadSeries(ctx context.Context, q models.SeriesQuery) (models.Series, error) {
	if q.Asset == "" {
		return nil, models.InvalidInput("asset", "asset is required")
	}
	from, to := q.From, q.To
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = p.now().UTC()
	}
	limit := q.Limit
	if limit <= 0 || limit > p.maxRows {
		limit = p.maxRows
	}

	fields, ok := kindFields[q.Kind]
	if !ok && q.Kind != models.KindHODLWaves {
		return nil, models.InvalidInput("kind", "unsupported kind %q", q.Kind)
	}

	start := time.Now()
	out, err := p.cb.Execute(func() (interface{}, error) {
		if q.Kind == models.KindHODLWaves {
			return p.loadCohorts(ctx, q.Asset, from, to, limit)
		}
		return p.loadMetrics(ctx, q.Asset, fields, from, to, limit)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("load series: %w: %v", domrepo.ErrUnavailable, err)
		}
		return nil, err
	}
	series := out.(models.Series)
	p.l.Debug("series loaded",
		logger.String("asset", q.Asset),
		logger.String("kind", string(q.Kind)),
		logger.Int("records", len(series)),
		logger.Duration("took", time.Since(start)),
	)
	return series, nil
}

const metricsQuery = `
        SELECT t, field, value
        FROM onchain_metrics
        WHERE %[1]s AND t IN (
            SELECT DISTINCT t FROM onchain_metrics
            WHERE %[1]s
            ORDER BY t DESC
            LIMIT ?
        )
        ORDER BY t ASC, field ASC
    `

func (p *CHSeriesProvider) loadMetrics(ctx context.Context, asset string, fields []string, from, to time.Time, limit int) (models.Series, error) {
	where := "asset = ? AND field IN (?" + strings.Repeat(", ?", len(fields)-1) + ") AND t >= ? AND t <= ?"
	filter := make([]interface{}, 0, len(fields)+3)
	filter = append(filter, asset)
	for _, f := range fields {
		filter = append(filter, f)
	}
	filter = append(filter, from, to)

	args := append(append(append([]interface{}{}, filter...), filter...), limit)
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(metricsQuery, where), args...)
	if err != nil {
		p.l.Error("clickhouse load_metrics query error", logger.String("asset", asset), logger.Error(err))
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	defer rows.Close()

	var (
		out  models.Series
		last time.Time
	)
	for rows.Next() {
		var (
			ts    time.Time
			field string
			value float64
		)
		if err := rows.Scan(&ts, &field, &value); err != nil {
			p.l.Error("clickhouse load_metrics scan error", logger.String("asset", asset), logger.Error(err))
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		ts = ts.UTC()
		if len(out) == 0 || !ts.Equal(last) {
			out = append(out, models.Record{Timestamp: ts, Fields: make(map[string]float64, len(fields))})
			last = ts
		}
		out[len(out)-1].Fields[field] = value
	}
	if err := rows.Err(); err != nil {
		p.l.Error("clickhouse load_metrics rows error", logger.String("asset", asset), logger.Error(err))
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return out, nil
}

const cohortsQuery = `
        SELECT t, age_days, value
        FROM utxo_cohorts
        WHERE asset = ? AND t >= ? AND t <= ? AND t IN (
            SELECT DISTINCT t FROM utxo_cohorts
            WHERE asset = ? AND t >= ? AND t <= ?
            ORDER BY t DESC
            LIMIT ?
        )
        ORDER BY t ASC, age_days ASC
    `

// loadCohorts emits one record per cohort row. Rows sharing a timestamp form
// one snapshot downstream.
func (p *CHSeriesProvider) loadCohorts(ctx context.Context, asset string, from, to time.Time, limit int) (models.Series, error) {
	rows, err := p.db.QueryContext(ctx, cohortsQuery, asset, from, to, asset, from, to, limit)
	if err != nil {
		p.l.Error("clickhouse load_cohorts query error", logger.String("asset", asset), logger.Error(err))
		return nil, fmt.Errorf("load cohorts: %w", err)
	}
	defer rows.Close()

	var out models.Series
	for rows.Next() {
		var (
			ts         time.Time
			age, value float64
		)
		if err := rows.Scan(&ts, &age, &value); err != nil {
			p.l.Error("clickhouse load_cohorts scan error", logger.String("asset", asset), logger.Error(err))
			return nil, fmt.Errorf("scan cohort: %w", err)
		}
		out = append(out, models.Record{
			Timestamp: ts.UTC(),
			Fields:    map[string]float64{models.FieldUTXOAgeDays: age, models.FieldUTXOValue: value},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cohorts: %w", err)
	}
	return out, nil
}

// Health pings ClickHouse unless the breaker is already open.
func (p *CHSeriesProvider) Health(ctx context.Context) error {
	if p.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("clickhouse: %w: breaker open", domrepo.ErrUnavailable)
	}
	return p.db.PingContext(ctx)
}
