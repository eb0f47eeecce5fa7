package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChainPulse/internal/domain/models"
	domrepo "ChainPulse/internal/domain/repository"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newMockProvider(t *testing.T, opts ...SeriesProviderOption) (*CHSeriesProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	opts = append([]SeriesProviderOption{WithProviderClock(func() time.Time { return day0.AddDate(0, 0, 10) })}, opts...)
	return NewCHSeriesProvider(db, opts...), mock
}

func TestCHSeriesProvider_PivotsMetrics(t *testing.T) {
	p, mock := newMockProvider(t, WithMaxRows(100))

	rows := sqlmock.NewRows([]string{"t", "field", "value"}).
		AddRow(day0, models.FieldDifficulty, 10.0).
		AddRow(day0, models.FieldHashRate, 100.0).
		AddRow(day0.AddDate(0, 0, 1), models.FieldHashRate, 101.0).
		AddRow(day0.AddDate(0, 0, 1), models.FieldPrice, 42000.0)
	mock.ExpectQuery("SELECT t, field, value\\s+FROM onchain_metrics").
		WithArgs(
			"BTC", models.FieldDifficulty, models.FieldHashRate, models.FieldPrice, day0, day0.AddDate(0, 0, 10),
			"BTC", models.FieldDifficulty, models.FieldHashRate, models.FieldPrice, day0, day0.AddDate(0, 0, 10),
			100,
		).
		WillReturnRows(rows)

	series, err := p.LoadSeries(context.Background(), models.SeriesQuery{
		Asset: "BTC", Kind: models.KindHashRibbon, From: day0, Limit: 5000,
	})
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, day0, series[0].Timestamp)
	assert.Equal(t, map[string]float64{models.FieldDifficulty: 10, models.FieldHashRate: 100}, series[0].Fields)
	assert.Equal(t, map[string]float64{models.FieldHashRate: 101, models.FieldPrice: 42000}, series[1].Fields)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHSeriesProvider_Cohorts(t *testing.T) {
	p, mock := newMockProvider(t)

	rows := sqlmock.NewRows([]string{"t", "age_days", "value"}).
		AddRow(day0, 10.0, 5.0).
		AddRow(day0, 400.0, 15.0)
	mock.ExpectQuery("FROM utxo_cohorts").
		WithArgs("BTC", sqlmock.AnyArg(), sqlmock.AnyArg(), "BTC", sqlmock.AnyArg(), sqlmock.AnyArg(), 20000).
		WillReturnRows(rows)

	series, err := p.LoadSeries(context.Background(), models.SeriesQuery{Asset: "BTC", Kind: models.KindHODLWaves})
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 400.0, series[1].Fields[models.FieldUTXOAgeDays])
	assert.Equal(t, 15.0, series[1].Fields[models.FieldUTXOValue])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHSeriesProvider_RejectsBadQueries(t *testing.T) {
	p, mock := newMockProvider(t)
	ctx := context.Background()

	_, err := p.LoadSeries(ctx, models.SeriesQuery{Kind: models.KindHashRibbon})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = p.LoadSeries(ctx, models.SeriesQuery{Asset: "BTC", Kind: "candles"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHSeriesProvider_BreakerOpens(t *testing.T) {
	p, mock := newMockProvider(t, WithBreaker(BreakerConfig{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 2,
	}))
	ctx := context.Background()
	q := models.SeriesQuery{Asset: "BTC", Kind: models.KindIssuanceMultiple}

	boom := errors.New("connection refused")
	mock.ExpectQuery("FROM onchain_metrics").WillReturnError(boom)
	mock.ExpectQuery("FROM onchain_metrics").WillReturnError(boom)

	for i := 0; i < 2; i++ {
		_, err := p.LoadSeries(ctx, q)
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	_, err := p.LoadSeries(ctx, q)
	assert.ErrorIs(t, err, domrepo.ErrUnavailable)
	assert.ErrorIs(t, p.Health(ctx), domrepo.ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHSeriesProvider_CancelDoesNotTrip(t *testing.T) {
	p, mock := newMockProvider(t, WithBreaker(BreakerConfig{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 1,
	}))
	mock.ExpectQuery("FROM onchain_metrics").WillReturnError(context.Canceled)

	_, err := p.LoadSeries(context.Background(), models.SeriesQuery{Asset: "BTC", Kind: models.KindHashRibbon})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestCHSeriesProvider_Health(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectPing()
	assert.NoError(t, p.Health(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, p.Health(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
