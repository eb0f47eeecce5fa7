package server

import (
	"context"
	"errors"
	"time"

	pkgkafka "ChainPulse/pkg/kafka"
	"ChainPulse/pkg/logger"
)

const limiterSweepInterval = time.Minute

// HTTPServer is the part of xhttp.Server the lifecycle drives.
type HTTPServer interface {
	Start() error
	Stop(ctx context.Context) error
	ShutdownTimeout() time.Duration
}

// Consumer is the part of kafka.Consumer the lifecycle drives.
type Consumer interface {
	RegisterHandler(h pkgkafka.MessageHandler)
	Start() error
	Stop(ctx context.Context) error
}

// Sweeper evicts idle rate limiter entries until stop is closed.
type Sweeper interface {
	Run(interval time.Duration, stop <-chan struct{})
}

// App encapsulates the entire application lifecycle.
type App struct {
	log      *logger.Logger
	http     HTTPServer
	consumer Consumer
	handler  pkgkafka.MessageHandler
	limiter  Sweeper
	stop     chan struct{}
}

// New creates an App serving HTTP through srv.
func New(l *logger.Logger, srv HTTPServer) *App {
	if l == nil {
		l = logger.Nop()
	}
	return &App{
		log:  l.With(logger.Component("app")),
		http: srv,
		stop: make(chan struct{}),
	}
}

// WithConsumer attaches a Kafka consumer and the handler for its topic.
func (a *App) WithConsumer(c Consumer, h pkgkafka.MessageHandler) *App {
	a.consumer, a.handler = c, h
	return a
}

// WithLimiter runs periodic sweeps of the rate limiter while the app is up.
func (a *App) WithLimiter(s Sweeper) *App {
	a.limiter = s
	return a
}

// Run starts every component and blocks until ctx is done, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if a.consumer != nil && a.handler != nil {
		a.consumer.RegisterHandler(a.handler)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.log.Info("kafka consumer started", logger.String("topic", a.handler.Topic()))
	}

	if a.limiter != nil {
		go a.limiter.Run(limiterSweepInterval, a.stop)
	}

	if err := a.http.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops HTTP first so no new work arrives, then drains Kafka.
func (a *App) shutdown() error {
	close(a.stop)

	ctx, cancel := context.WithTimeout(context.Background(), a.http.ShutdownTimeout())
	defer cancel()

	var errs []error
	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil && a.handler != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
			errs = append(errs, err)
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
