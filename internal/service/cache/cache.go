package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"ChainPulse/internal/domain/repository"
	pkgcache "ChainPulse/pkg/cache"
	"ChainPulse/pkg/logger"
)

const (
	keyPrefix         = "fit"
	defaultFitTimeout = 30 * time.Second
)

// FitCache memoizes fitted stage results keyed by stage, config fingerprint
// and the exact input values. A nil *FitCache or one without a store is a
// pass-through.
type FitCache struct {
	store      pkgcache.Service
	ttl        time.Duration
	fitTimeout time.Duration
	metrics    repository.Metrics
	log        *logger.Logger
	group      singleflight.Group
}

// Option customizes a FitCache.
type Option func(*FitCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *FitCache) { c.ttl = ttl }
}

// WithFitTimeout bounds a shared fit, which outlives the caller that
// started it.
func WithFitTimeout(d time.Duration) Option {
	return func(c *FitCache) {
		if d > 0 {
			c.fitTimeout = d
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *FitCache) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *FitCache) {
		if l != nil {
			c.log = l
		}
	}
}

// New wraps store. Passing a nil store disables caching.
func New(store pkgcache.Service, opts ...Option) *FitCache {
	c := &FitCache{
		store:      store,
		ttl:        time.Hour,
		fitTimeout: defaultFitTimeout,
		metrics:    repository.NopMetrics{},
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether lookups reach a backing store.
func (c *FitCache) Enabled() bool { return c != nil && c.store != nil }

// Key digests stage, fingerprint and every value bit-for-bit. Series that
// differ only in a trailing append produce different keys.
func Key(stage, fingerprint string, series ...[]float64) string {
	buf := make([]byte, 0, 64)
	buf = append(buf, stage...)
	buf = append(buf, 0)
	buf = append(buf, fingerprint...)
	for _, s := range series {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(s)))
		for _, v := range s {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return pkgcache.Key(keyPrefix, stage, pkgcache.HashBytes(buf))
}

// Do returns the cached value for key or runs fit and stores its result.
// Concurrent callers with the same key share one fit, which runs detached
// from any single caller's cancellation and is bounded by the fit timeout.
// Each caller still returns early when its own ctx ends. Store failures are
// logged and never fail the call; fit errors are returned and not cached.
func Do[T any](ctx context.Context, c *FitCache, stage, key string, fit func(context.Context) (T, error)) (T, bool, error) {
	if !c.Enabled() {
		v, err := fit(ctx)
		return v, false, err
	}

	var cached T
	err := c.store.Get(ctx, key, &cached)
	switch {
	case err == nil:
		c.metrics.RecordCache(stage, true)
		return cached, true, nil
	case !errors.Is(err, pkgcache.ErrCacheMiss):
		c.log.Warn("fit cache read failed", logger.String("stage", stage), logger.Error(err))
	}
	c.metrics.RecordCache(stage, false)

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(shared, c.fitTimeout)
		defer cancel()
		v, err := fit(fctx)
		if err != nil {
			return v, err
		}
		if serr := c.store.Set(fctx, key, v, c.ttl); serr != nil {
			c.log.Warn("fit cache write failed", logger.String("stage", stage), logger.Error(serr))
		}
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		v, _ := res.Val.(T)
		return v, false, res.Err
	}
}
