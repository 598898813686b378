package processing

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Graph is the data side of a live single-channel EEG plot. Sensor callbacks feed
// OnSample, a WindowBuilder folds the latest sample of the selected channel into a
// sliding window and a RedrawPump hands that window to the renderer at a fixed rate.
//
// Start and Stop follow the visibility of the hosting view. Both are idempotent and the
// window survives a stop, so a graph can be restarted without being rebuilt.
type Graph struct {
	latch   *SampleLatch
	window  *Window
	target  *RenderTarget
	builder *WindowBuilder
	pump    *RedrawPump
	logger  *zap.Logger
}

func NewGraph(renderer Renderer, cfg Config, logger *zap.Logger) *Graph {
	return NewGraphWithClock(renderer, cfg, clock.New(), logger)
}

func NewGraphWithClock(renderer Renderer, cfg Config, clk clock.Clock, logger *zap.Logger) *Graph {
	latch := NewSampleLatch()
	window := NewWindow(cfg.ResolvedPlotLength())
	target := NewRenderTarget(renderer)

	return &Graph{
		latch:   latch,
		window:  window,
		target:  target,
		builder: NewWindowBuilder(latch, window, cfg.drainInterval(), clk, logger),
		pump:    NewRedrawPump(window, target, cfg.redrawPeriod(), clk, logger),
		logger:  logger,
	}
}

// OnSample is the sensor data callback.
func (g *Graph) OnSample(reading Sample) {
	g.latch.Update(reading)
}

// OnArtifact is the sensor artifact callback. Artifacts are not plotted.
func (g *Graph) OnArtifact(Artifact) {}

func (g *Graph) SetSelectedChannel(index int) error {
	return g.builder.SetSelectedChannel(index)
}

func (g *Graph) SelectedChannel() int {
	return g.builder.SelectedChannel()
}

func (g *Graph) Start() {
	startedBuilder := g.builder.Start()
	startedPump := g.pump.Start()
	if startedBuilder || startedPump {
		g.logger.Info("[graph] started", zap.Int("channel", g.SelectedChannel()), zap.Int("plotLength", g.window.Cap()))
	}
}

func (g *Graph) Stop() {
	stoppedPump := g.pump.Stop()
	stoppedBuilder := g.builder.Stop()
	if stoppedBuilder || stoppedPump {
		g.logger.Info("[graph] stopped", zap.Uint64("droppedSamples", g.latch.Dropped()))
	}
}

func (g *Graph) Running() bool {
	return g.builder.Running() || g.pump.Running()
}

// Close stops the loops and detaches the renderer. The graph must not be restarted
// after Close.
func (g *Graph) Close() {
	g.Stop()
	g.target.Detach()
}

func (g *Graph) Snapshot() []float64 {
	return g.window.Snapshot()
}

func (g *Graph) Points() []Point {
	return g.window.Points()
}

// Latest returns the most recent reading without consuming it.
func (g *Graph) Latest() (Sample, bool) {
	return g.latch.Peek()
}

func (g *Graph) Dropped() uint64 {
	return g.latch.Dropped()
}

func (g *Graph) FrameStats() FrameStats {
	return g.pump.FrameStats()
}
