package indicators

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChainPulse/internal/domain/models"
)

func TestLatestOutputs_TakesFinalSnapshotSortedByAge(t *testing.T) {
	day2 := t0.AddDate(0, 0, 1)
	ts := []time.Time{t0, t0, day2, day2, day2}
	ages := []float64{10, 20, 400, 3, 50}
	values := []float64{7, 7, 30, 10, 0}

	o := latestOutputs(ts, ages, values)
	assert.Equal(t, []float64{3, 400}, o.ages)
	assert.Equal(t, []float64{10, 30}, o.values)
	assert.Equal(t, 40.0, o.total)
}

func TestCohortAndSupplyMetrics_HandComputedSnapshot(t *testing.T) {
	o := outputs{ages: []float64{3, 45, 400, 4000}, values: []float64{10, 20, 30, 40}, total: 100}
	entropy := -(0.1*math.Log(0.1) + 0.2*math.Log(0.2) + 0.3*math.Log(0.3) + 0.4*math.Log(0.4))

	ca := cohortAnalysisOf(o)
	require.NotNil(t, ca)
	assert.Len(t, ca.Shares, len(models.CohortLabels))
	assert.InDelta(t, 0.1, ca.Shares["1d_7d"], 1e-12)
	assert.InDelta(t, 0.2, ca.Shares["1m_3m"], 1e-12)
	assert.InDelta(t, 0.3, ca.Shares["1y_2y"], 1e-12)
	assert.InDelta(t, 0.4, ca.Shares["10y_plus"], 1e-12)
	assert.Zero(t, ca.Shares["3y_5y"])

	mean := 1729.3
	variance := (10*math.Pow(3-mean, 2) + 20*math.Pow(45-mean, 2) + 30*math.Pow(400-mean, 2) + 40*math.Pow(4000-mean, 2)) / 100
	assert.InDelta(t, mean, ca.AverageCoinAge, 1e-9)
	assert.InDelta(t, variance, ca.CoinAgeVariance, 1e-6)
	assert.Equal(t, 400.0, ca.MedianCoinAge)
	assert.InDelta(t, entropy, ca.Entropy, 1e-12)
	assert.InDelta(t, 0.30, ca.ConcentrationIndex, 1e-12)
	assert.InDelta(t, 0.3, ca.EmergingStrength, 1e-12)
	assert.InDelta(t, 0.7, ca.MatureDominance, 1e-12)

	sd := supplyDistributionOf(o)
	require.NotNil(t, sd)
	assert.InDelta(t, 0.25, sd.Gini, 1e-12)
	assert.InDelta(t, 0.30, sd.Herfindahl, 1e-12)
	assert.InDelta(t, entropy, sd.Entropy, 1e-12)
	assert.Equal(t, 2, sd.NakamotoCoefficient)
	assert.InDelta(t, 0.3, sd.Velocity, 1e-12)
	assert.InDelta(t, 0.4, sd.StagnationRatio, 1e-12)
	assert.InDelta(t, 0.1, sd.Dormancy["1d_30d"], 1e-12)
	assert.InDelta(t, 0.2, sd.Dormancy["30d_90d"], 1e-12)
	assert.InDelta(t, 0.3, sd.Dormancy["1y_2y"], 1e-12)
	assert.InDelta(t, 0.4, sd.Dormancy["2y_plus"], 1e-12)
	assert.Zero(t, sd.Dormancy["180d_1y"])
	assert.InDelta(t, 0.27, sd.CentralizationRisk, 1e-12)
	assert.InDelta(t, 0.54, sd.ShockResistance, 1e-12)
	assert.InDelta(t, 0.75*0.4+entropy/math.Log(4)*0.3+0.3, sd.HealthScore, 1e-12)
}

func TestSupplyDistribution_SingleOutput(t *testing.T) {
	sd := supplyDistributionOf(outputs{ages: []float64{100}, values: []float64{5}, total: 5})
	require.NotNil(t, sd)
	assert.Zero(t, sd.Gini)
	assert.InDelta(t, 1.0, sd.Herfindahl, 1e-12)
	assert.Equal(t, 1, sd.NakamotoCoefficient)
	assert.False(t, math.IsNaN(sd.HealthScore))
	assert.Nil(t, supplyDistributionOf(outputs{}))
	assert.Nil(t, cohortAnalysisOf(outputs{}))
}

func TestHODLWaves_ReportsCohortsAndSupply(t *testing.T) {
	s := hodlSeries(3, map[float64]float64{3: 10, 45: 20, 400: 30, 4000: 40}, 0)
	out, err := HODLWaves{}.Compute(context.Background(), prepare(t, models.KindHODLWaves, s), models.DefaultAnalysisConfig())
	require.NoError(t, err)
	res := out.HODLWaves
	require.NotNil(t, res.Cohorts)
	require.NotNil(t, res.Supply)
	assert.InDelta(t, 1729.3, res.Cohorts.AverageCoinAge, 1e-9)
	assert.InDelta(t, 0.25, res.Supply.Gini, 1e-12)
	assert.InDelta(t, 0.27, out.Risk.Centralization, 1e-12)

	empty := hodlSeries(3, map[float64]float64{10: 0, 400: 0}, 0)
	out, err = HODLWaves{}.Compute(context.Background(), prepare(t, models.KindHODLWaves, empty), models.DefaultAnalysisConfig())
	require.NoError(t, err)
	assert.Nil(t, out.HODLWaves.Cohorts)
	assert.Nil(t, out.HODLWaves.Supply)
}
