package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ChainPulse/internal/domain/repository"
	"ChainPulse/internal/handler/api"
	internalrepo "ChainPulse/internal/repository"
	fitcache "ChainPulse/internal/service/cache"
	"ChainPulse/internal/service/ratelimit"
	"ChainPulse/internal/usecase"
	pkgcache "ChainPulse/pkg/cache"
	pkgch "ChainPulse/pkg/clickhouse"
	"ChainPulse/pkg/config"
	xhttp "ChainPulse/pkg/http"
	pkgkafka "ChainPulse/pkg/kafka"
	"ChainPulse/pkg/logger"
	"ChainPulse/pkg/metrics"
	"ChainPulse/pkg/server"
)

// Optional components (ClickHouse, Redis, Kafka, rate limiting) are provided
// as nil when disabled. Consumers check for nil before use.

// ProvideRegistry creates the Prometheus registry shared by every collector.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pkgkafka.SetMetricsRegisterer(reg)
	return reg
}

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stdout",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegistry(reg)
}

// ProvideRedisCache connects to Redis when it is enabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCacheStore picks the fit cache backend: memory alone, or memory in
// front of Redis. A disabled cache yields a nil store.
func ProvideCacheStore(cfg *config.Config, rc *pkgcache.RedisCache) pkgcache.Service {
	switch {
	case !cfg.Cache.Enabled:
		return nil
	case rc != nil:
		return pkgcache.NewLayeredCache(rc,
			pkgcache.WithLayeredMemorySize(cfg.Cache.MaxSize),
			pkgcache.WithLayeredMemoryTTL(cfg.Cache.TTL),
		)
	default:
		return pkgcache.NewMemoryCache(
			pkgcache.WithMemoryMaxSize(cfg.Cache.MaxSize),
			pkgcache.WithMemoryTTL(cfg.Cache.TTL),
		)
	}
}

// ProvideFitCache wraps the store for the engine stages.
func ProvideFitCache(cfg *config.Config, store pkgcache.Service, m repository.Metrics, l *logger.Logger) *fitcache.FitCache {
	return fitcache.New(store,
		fitcache.WithTTL(cfg.Cache.TTL),
		fitcache.WithFitTimeout(cfg.Cache.FitTimeout),
		fitcache.WithMetrics(m),
		fitcache.WithLogger(l),
	)
}

// ProvideEngine creates the analysis engine with the native analyzers.
func ProvideEngine(cfg *config.Config, fc *fitcache.FitCache, m repository.Metrics, l *logger.Logger) *usecase.Engine {
	return usecase.NewEngine(usecase.DefaultAnalyzers(), fc, m, l, usecase.EngineOptions{
		Workers: cfg.Analysis.Workers,
		Timeout: cfg.Analysis.Timeout,
	})
}

// ProvideClickHouseClient connects to ClickHouse when it is enabled and
// creates the tables when init_schema is set. Without init_schema the
// connection is read-only.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithReadonly(!cfg.ClickHouse.InitSchema),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.Schema); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		l.Info("clickhouse schema ready", logger.String("database", cfg.ClickHouse.Database))
	}

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", logger.Error(err))
		}
	}, nil
}

// ProvideSeriesProvider builds the breaker-guarded series reader.
func ProvideSeriesProvider(cfg *config.Config, client *pkgch.Client, l *logger.Logger) *internalrepo.CHSeriesProvider {
	if client == nil {
		return nil
	}
	b := cfg.ClickHouse.Breaker
	return internalrepo.NewCHSeriesProvider(client.DB(),
		internalrepo.WithMaxRows(cfg.ClickHouse.MaxRows),
		internalrepo.WithBreaker(internalrepo.BreakerConfig{
			MaxRequests:  b.MaxRequests,
			Interval:     b.Interval,
			Timeout:      b.Timeout,
			FailureRatio: b.FailureRatio,
			MinRequests:  b.MinRequests,
		}),
		internalrepo.WithProviderLogger(l),
	)
}

// ProvideAssetAnalysis joins the series provider and the engine.
func ProvideAssetAnalysis(provider *internalrepo.CHSeriesProvider, engine *usecase.Engine, l *logger.Logger) *usecase.AssetAnalysis {
	if provider == nil {
		return nil
	}
	return usecase.NewAssetAnalysis(provider, engine, l)
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(p.BatchSize, p.Linger),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, err
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideResultPublisher publishes analysis results to the results topic.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultsTopic)
}

// ProvideKafkaConsumer creates the request consumer with tracing and
// logging hooks attached.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LoggingHook(l)))
	return consumer, nil
}

// ProvideKafkaAnalysisHandler handles analysis requests from Kafka.
func ProvideKafkaAnalysisHandler(
	cfg *config.Config,
	engine *usecase.Engine,
	assets *usecase.AssetAnalysis,
	pub repository.ResultPublisher,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.KafkaAnalysisHandler {
	if pub == nil {
		return nil
	}
	return usecase.NewKafkaAnalysisHandler(cfg.Kafka.RequestsTopic, engine, assets, pub, cfg.Analysis.AnalysisConfig, m, l)
}

// ProvideRateLimiter creates the per-client limiter for the analysis API.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.TTL)
}

// ProvideAnalysisHandler registers the analysis routes and health checks.
func ProvideAnalysisHandler(
	cfg *config.Config,
	l *logger.Logger,
	engine *usecase.Engine,
	assets *usecase.AssetAnalysis,
	provider *internalrepo.CHSeriesProvider,
	rc *pkgcache.RedisCache,
	limiter *ratelimit.Limiter,
) *api.AnalysisHandler {
	var runner api.AssetRunner
	if assets != nil {
		runner = assets
	}
	h := api.NewAnalysisHandler(l, engine, runner, cfg.Analysis.AnalysisConfig)
	if provider != nil {
		h.WithHealthCheck("clickhouse", provider)
	}
	if rc != nil {
		h.WithHealthCheck("redis", rc)
	}
	if limiter != nil {
		h.Use(limiter.Middleware())
	}
	return h
}

// ProvideHTTPServer builds the Echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.AnalysisHandler, reg *prometheus.Registry, l *logger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithBodyLimit(cfg.Server.BodyLimit),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path))
	}
	return xhttp.NewServer([]xhttp.Handler{h}, opts...)
}

// ProvideApp creates the application lifecycle.
func ProvideApp(
	l *logger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAnalysisHandler,
	limiter *ratelimit.Limiter,
) *server.App {
	app := server.New(l, srv)
	if consumer != nil && kh != nil {
		app.WithConsumer(consumer, kh)
	}
	if limiter != nil {
		app.WithLimiter(limiter)
	}
	return app
}
