package models

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisConfig_DefaultIsValid(t *testing.T) {
	c := DefaultAnalysisConfig()
	require.NoError(t, c.Validate())
	assert.True(t, c.CycleEnabled())
	assert.True(t, c.PredictionsEnabled())
}

func TestAnalysisConfig_ValidateRejects(t *testing.T) {
	cases := map[string]func(*AnalysisConfig){
		"short_window":       func(c *AnalysisConfig) { c.ShortWindow = 1 },
		"long_window":        func(c *AnalysisConfig) { c.LongWindow = c.ShortWindow },
		"regimes":            func(c *AnalysisConfig) { c.Regimes = 4 },
		"simulations":        func(c *AnalysisConfig) { c.Simulations = 0 },
		"anomaly_threshold":  func(c *AnalysisConfig) { c.AnomalyThreshold = math.Inf(1) },
		"confidence_level":   func(c *AnalysisConfig) { c.ConfidenceLevel = 1 },
		"volatility_horizon": func(c *AnalysisConfig) { c.VolatilityHorizon = 61 },
		"imputation":         func(c *AnalysisConfig) { c.Imputation = "mean" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			c := DefaultAnalysisConfig()
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)

			var ae *AnalysisError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, field, ae.Field)
		})
	}
}

func TestAnalysisConfig_NilFlagsAreDisabled(t *testing.T) {
	var c AnalysisConfig
	assert.False(t, c.RegimeEnabled())
	assert.False(t, c.RiskEnabled())
}

func TestAnalysisConfig_CloneDetachesFlags(t *testing.T) {
	orig := DefaultAnalysisConfig()
	cp := orig.Clone()
	*cp.EnableMonteCarlo = false

	assert.True(t, orig.MonteCarloEnabled())
	assert.False(t, cp.MonteCarloEnabled())
}

func TestAnalysisConfig_Fingerprint(t *testing.T) {
	a := DefaultAnalysisConfig()
	b := a.Clone()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)

	b.Seed++
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := a.Clone()
	c.EnableKalmanFilter = nil
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestAnalysisError_KindMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", InvalidInput("series", "empty"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrConfiguration)
	assert.True(t, IsFatal(err))
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Equal(t, "invalid_input: series: empty", InvalidInput("series", "empty").Error())

	cause := errors.New("singular matrix")
	fit := FitFailure("regime", cause)
	assert.ErrorIs(t, fit, ErrModelFit)
	assert.ErrorIs(t, fit, cause)
	assert.False(t, IsFatal(fit))

	short := InsufficientData("cycle", 10, 64)
	assert.ErrorIs(t, short, ErrInsufficientData)
	assert.Contains(t, short.Error(), "have 10 points, need 64")

	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestParseKind(t *testing.T) {
	cases := map[string]IndicatorKind{
		"hash_ribbon":       KindHashRibbon,
		"hash-ribbon":       KindHashRibbon,
		"issuance-multiple": KindIssuanceMultiple,
		"puell":             KindIssuanceMultiple,
		"hodl_waves":        KindHODLWaves,
	}
	for in, want := range cases {
		got, ok := ParseKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
		assert.True(t, IsValidKind(got))
	}
	_, ok := ParseKind("mvrv")
	assert.False(t, ok)
	assert.False(t, IsValidKind("mvrv"))
}

func TestSeries_Helpers(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Series{
		{Timestamp: t0, Fields: map[string]float64{FieldPrice: 1}},
		{Timestamp: t0.Add(24 * time.Hour), Fields: map[string]float64{FieldHashRate: 2}},
	}
	assert.True(t, s.HasField(FieldHashRate))
	assert.False(t, s.HasField(FieldDifficulty))
	assert.Equal(t, []time.Time{t0, t0.Add(24 * time.Hour)}, s.Timestamps())

	p := &PreparedSeries{Timestamps: s.Timestamps(), Columns: map[string][]float64{FieldPrice: {1, 1}}}
	assert.Equal(t, 2, p.Len())
	v, ok := p.Column(FieldPrice)
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 1}, v)
}
