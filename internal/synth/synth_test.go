package synth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"sleepywoodpecker/eeg-graph/internal/processing"
)

func TestGeneratorStaysInPlotRange(t *testing.T) {
	gen := NewGenerator(SampleRate, 8, 1)
	for i := 0; i < SampleRate*4; i++ {
		s := gen.Next()
		for ch, v := range s {
			test.That(t, v, test.ShouldBeBetween, 500.0, 1100.0)
			if ch > 0 {
				test.That(t, v, test.ShouldNotEqual, s[0])
			}
		}
	}
}

func TestGeneratorIsDeterministicPerSeed(t *testing.T) {
	a := NewGenerator(LowPowerSampleRate, 8, 42)
	b := NewGenerator(LowPowerSampleRate, 8, 42)
	for i := 0; i < 100; i++ {
		test.That(t, a.Next(), test.ShouldResemble, b.Next())
	}
}

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (c *countingSink) OnSample(processing.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestSourcePushesAtSampleRate(t *testing.T) {
	mockClock := clock.NewMock()
	sink := &countingSink{}
	source := NewSource(NewGenerator(SampleRate, 0, 1), sink, mockClock, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- source.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 3 {
		test.That(t, time.Now().Before(deadline), test.ShouldBeTrue)
		mockClock.Add(source.period)
	}

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}
