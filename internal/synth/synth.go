// Package synth generates a plausible four-electrode EEG stream for running the graph
// without a headband attached.
package synth

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"sleepywoodpecker/eeg-graph/internal/processing"
)

const (
	SampleRate         = 256
	LowPowerSampleRate = 220

	// Baseline sits in the middle of the 500..1100 raw range the plot shows.
	Baseline = 800.0
)

type band struct {
	hz        float64
	amplitude float64
}

// alpha dominates, as it does for a relaxed wearer with eyes closed
var bands = []band{
	{hz: 6, amplitude: 25},
	{hz: 10, amplitude: 60},
	{hz: 21, amplitude: 15},
}

// Generator produces one sample per call to Next. Each channel gets its own phase
// offset so the electrodes are distinguishable on the plot.
type Generator struct {
	sampleRate float64
	noise      float64
	n          uint64
	rng        *rand.Rand
}

func NewGenerator(sampleRate int, noise float64, seed uint64) *Generator {
	return &Generator{
		sampleRate: float64(sampleRate),
		noise:      noise,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (g *Generator) Next() processing.Sample {
	t := float64(g.n) / g.sampleRate
	g.n++

	var s processing.Sample
	for ch := range s {
		phase := float64(ch) * math.Pi / 4
		v := Baseline
		for _, b := range bands {
			v += b.amplitude * math.Sin(2*math.Pi*b.hz*t+phase)
		}
		v += g.noise * g.rng.NormFloat64()
		s[ch] = v
	}
	return s
}

// Source pushes generated samples into a sink at the generator's sample rate.
type Source struct {
	gen    *Generator
	sink   processing.SampleSink
	period time.Duration
	clock  clock.Clock
	logger *zap.Logger
}

func NewSource(gen *Generator, sink processing.SampleSink, clk clock.Clock, logger *zap.Logger) *Source {
	return &Source{
		gen:    gen,
		sink:   sink,
		period: time.Duration(float64(time.Second) / gen.sampleRate),
		clock:  clk,
		logger: logger,
	}
}

func (s *Source) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.period)
	defer ticker.Stop()

	s.logger.Info("[synth] streaming synthetic EEG", zap.Duration("period", s.period))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("[synth] received shutdown signal")
			return nil
		case <-ticker.C:
			s.sink.OnSample(s.gen.Next())
		}
	}
}
