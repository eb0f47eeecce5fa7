package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChainPulse/internal/domain/models"
	pkgcache "ChainPulse/pkg/cache"
)

type countingMetrics struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (m *countingMetrics) ObserveAnalysis(string, string, float64) {}
func (m *countingMetrics) ObserveStage(string, string, float64)    {}
func (m *countingMetrics) RecordFallback(string, string)           {}
func (m *countingMetrics) RecordError(string)                      {}
func (m *countingMetrics) RecordCache(_ string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func TestKey_SensitiveToEveryInput(t *testing.T) {
	base := Key("regime", "abc", []float64{1, 2, 3})
	assert.Equal(t, base, Key("regime", "abc", []float64{1, 2, 3}))
	assert.NotEqual(t, base, Key("volatility", "abc", []float64{1, 2, 3}))
	assert.NotEqual(t, base, Key("regime", "abd", []float64{1, 2, 3}))
	assert.NotEqual(t, base, Key("regime", "abc", []float64{1, 2, 3, 4}))
	assert.NotEqual(t, Key("s", "f", []float64{1}, []float64{2}), Key("s", "f", []float64{1, 2}))
}

func TestDo_HitAfterMiss(t *testing.T) {
	ctx := context.Background()
	m := &countingMetrics{}
	fc := New(pkgcache.NewMemoryCache(), WithMetrics(m))
	key := Key(models.StageRegime, "fp", []float64{1, 2})

	calls := 0
	fit := func(context.Context) (*models.RegimeAnalysis, error) {
		calls++
		return &models.RegimeAnalysis{Status: models.StatusOK, CurrentLabel: "expansion"}, nil
	}

	first, hit, err := Do(ctx, fc, models.StageRegime, key, fit)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := Do(ctx, fc, models.StageRegime, key, fit)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 1, m.misses)
}

func TestDo_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	fc := New(pkgcache.NewMemoryCache())
	boom := errors.New("boom")

	_, _, err := Do(ctx, fc, "s", "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, hit, err := Do(ctx, fc, "s", "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestDo_DisabledPassesThrough(t *testing.T) {
	var nilCache *FitCache
	for _, fc := range []*FitCache{nilCache, New(nil)} {
		var calls int32
		for i := 0; i < 2; i++ {
			v, hit, err := Do(context.Background(), fc, "s", "k", func(context.Context) (string, error) {
				atomic.AddInt32(&calls, 1)
				return "x", nil
			})
			require.NoError(t, err)
			assert.False(t, hit)
			assert.Equal(t, "x", v)
		}
		assert.EqualValues(t, 2, calls)
	}
}

func TestDo_SharedFitSurvivesFirstCallerCancel(t *testing.T) {
	fc := New(pkgcache.NewMemoryCache(), WithFitTimeout(5*time.Second))
	started, release := make(chan struct{}), make(chan struct{})
	outcomes := make(chan error, 2)
	var once sync.Once
	fit := func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-release
		if _, ok := ctx.Deadline(); !ok {
			return 0, errors.New("shared fit has no deadline")
		}
		outcomes <- ctx.Err()
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 42, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := Do(ctx, fc, "s", "shared", fit)
		firstErr <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		v   int
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, _, err := Do(context.Background(), fc, "s", "shared", fit)
		second <- result{v, err}
	}()
	close(release)

	assert.NoError(t, <-outcomes)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 42, got.v)

	v, hit, err := Do(context.Background(), fc, "s", "shared", fit)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v)
}
