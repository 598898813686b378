package processing

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	frameHistMinUs  = 1
	frameHistMaxUs  = 10_000_000
	frameHistSigFig = 3
)

// Renderer draws one frame from the window contents. Implementations must not retain
// points past the call. Render runs on the redraw loop, so it must not call Stop or
// Close on the Graph (or Stop on the pump) that drives it: those wait for the loop to
// exit and would deadlock.
type Renderer interface {
	Render(points []Point) error
}

// RenderTarget is a non-owning handle to a Renderer. The owner detaches it at teardown;
// from then on redraws through it are no-ops.
type RenderTarget struct {
	lock     sync.RWMutex
	renderer Renderer
}

func NewRenderTarget(renderer Renderer) *RenderTarget {
	return &RenderTarget{renderer: renderer}
}

func (t *RenderTarget) Detach() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.renderer = nil
}

func (t *RenderTarget) Attached() bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.renderer != nil
}

// render holds the read lock for the whole pass so Detach waits for an in-flight frame.
func (t *RenderTarget) render(points []Point) (bool, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.renderer == nil {
		return false, nil
	}
	return true, t.renderer.Render(points)
}

// FrameStats summarizes how long render passes took.
type FrameStats struct {
	Frames int64
	Mean   time.Duration
	P50    time.Duration
	P99    time.Duration
	Max    time.Duration
}

// RedrawPump renders the window at a fixed period.
type RedrawPump struct {
	window *Window
	target *RenderTarget
	clock  clock.Clock
	logger *zap.Logger
	loop   *tickLoop

	statsLock sync.Mutex
	frameTime *hdrhistogram.Histogram
}

func NewRedrawPump(window *Window, target *RenderTarget, period time.Duration, clk clock.Clock, logger *zap.Logger) *RedrawPump {
	p := &RedrawPump{
		window:    window,
		target:    target,
		clock:     clk,
		logger:    logger,
		frameTime: hdrhistogram.New(frameHistMinUs, frameHistMaxUs, frameHistSigFig),
	}
	p.loop = newTickLoop("redrawPump", period, clk, logger, func() { p.Redraw() })
	return p
}

// Redraw runs one render pass over the current window contents and reports whether a
// frame was rendered.
func (p *RedrawPump) Redraw() bool {
	start := p.clock.Now()
	rendered, err := p.target.render(p.window.Points())
	if !rendered {
		return false
	}
	if err != nil {
		p.logger.Warn("[redrawPump] render pass failed", zap.Error(err))
		return false
	}

	elapsed := p.clock.Since(start).Microseconds()
	p.statsLock.Lock()
	if err := p.frameTime.RecordValue(min(elapsed, frameHistMaxUs)); err != nil {
		p.logger.Debug("[redrawPump] could not record frame time", zap.Error(err), zap.Int64("us", elapsed))
	}
	p.statsLock.Unlock()
	return true
}

func (p *RedrawPump) FrameStats() FrameStats {
	p.statsLock.Lock()
	defer p.statsLock.Unlock()

	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return FrameStats{
		Frames: p.frameTime.TotalCount(),
		Mean:   time.Duration(p.frameTime.Mean() * float64(time.Microsecond)),
		P50:    us(p.frameTime.ValueAtQuantile(50)),
		P99:    us(p.frameTime.ValueAtQuantile(99)),
		Max:    us(p.frameTime.Max()),
	}
}

func (p *RedrawPump) Start() bool {
	return p.loop.start()
}

func (p *RedrawPump) Stop() bool {
	if !p.loop.stop() {
		return false
	}
	stats := p.FrameStats()
	p.logger.Info("[redrawPump] stopped",
		zap.Int64("frames", stats.Frames),
		zap.Duration("meanFrameTime", stats.Mean),
		zap.Duration("p99FrameTime", stats.P99),
	)
	return true
}

func (p *RedrawPump) Running() bool {
	return p.loop.running()
}
