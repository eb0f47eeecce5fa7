package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "ChainPulse/pkg/kafka"
)

type fakeHTTP struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	startErr error
}

func (f *fakeHTTP) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.startErr
}

func (f *fakeHTTP) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeHTTP) ShutdownTimeout() time.Duration { return time.Second }

type fakeConsumer struct {
	handlers []pkgkafka.MessageHandler
	started  bool
	stopped  bool
	startErr error
}

func (f *fakeConsumer) RegisterHandler(h pkgkafka.MessageHandler) { f.handlers = append(f.handlers, h) }
func (f *fakeConsumer) Start() error                              { f.started = true; return f.startErr }
func (f *fakeConsumer) Stop(context.Context) error                { f.stopped = true; return nil }

type topicHandler string

func (h topicHandler) Topic() string                        { return string(h) }
func (h topicHandler) Handle(context.Context, []byte) error { return nil }

type fakeSweeper struct{ done chan struct{} }

func (s *fakeSweeper) Run(_ time.Duration, stop <-chan struct{}) {
	<-stop
	close(s.done)
}

func TestApp_RunAndShutdown(t *testing.T) {
	srv := &fakeHTTP{}
	cons := &fakeConsumer{}
	sw := &fakeSweeper{done: make(chan struct{})}
	app := New(nil, srv).WithConsumer(cons, topicHandler("requests")).WithLimiter(sw)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.True(t, srv.started)
	assert.True(t, srv.stopped)
	assert.True(t, cons.started)
	assert.True(t, cons.stopped)
	require.Len(t, cons.handlers, 1)
	assert.Equal(t, "requests", cons.handlers[0].Topic())

	select {
	case <-sw.done:
	case <-time.After(time.Second):
		t.Fatal("limiter sweep was not stopped")
	}
}

func TestApp_ConsumerStartFailure(t *testing.T) {
	srv := &fakeHTTP{}
	cons := &fakeConsumer{startErr: errors.New("no brokers")}
	app := New(nil, srv).WithConsumer(cons, topicHandler("requests"))

	err := app.Run(context.Background())
	assert.EqualError(t, err, "no brokers")
	assert.False(t, srv.started)
}

func TestApp_HTTPStartFailureShutsDown(t *testing.T) {
	srv := &fakeHTTP{startErr: errors.New("bind")}
	app := New(nil, srv)

	assert.EqualError(t, app.Run(context.Background()), "bind")
	assert.True(t, srv.stopped)
}
