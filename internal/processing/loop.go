package processing

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// tickLoop runs tick every interval on its own goroutine between start and stop.
// A stop request is observed on the loop's next wake, so it takes effect within one
// interval; stop blocks until the goroutine has exited.
type tickLoop struct {
	name     string
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	tick     func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newTickLoop(name string, interval time.Duration, clk clock.Clock, logger *zap.Logger, tick func()) *tickLoop {
	return &tickLoop{
		name:     name,
		interval: interval,
		clock:    clk,
		logger:   logger,
		tick:     tick,
	}
}

// start reports whether a new loop was started. It is a no-op while running.
func (l *tickLoop) start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	// the ticker is created before returning so that a tick is never missed by a
	// caller that advances the clock right after start
	ticker := l.clock.Ticker(l.interval)
	l.cancel = cancel
	l.done = done

	l.logger.Debug("["+l.name+"] loop started", zap.Duration("interval", l.interval))
	go l.run(ctx, ticker, done)
	return true
}

func (l *tickLoop) run(ctx context.Context, ticker *clock.Ticker, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("[" + l.name + "] loop stopped")
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

// stop reports whether a running loop was stopped. It is a no-op while stopped.
func (l *tickLoop) stop() bool {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (l *tickLoop) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}
