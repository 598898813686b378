package processing

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const SamplingChannelName = "eegwindow"

// WindowSource is the read side of a Graph that the sampler reports on.
type WindowSource interface {
	Snapshot() []float64
	SelectedChannel() int
	Dropped() uint64
}

// WindowStats summarizes the values currently in the window.
type WindowStats struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// FiniteValues returns values without NaN and infinite entries. The input is not
// modified.
func FiniteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ComputeWindowStats summarizes the finite values. It returns zero stats and false when
// there are none.
func ComputeWindowStats(values []float64) (WindowStats, bool) {
	values = FiniteValues(values)
	if len(values) == 0 {
		return WindowStats{}, false
	}
	data := stats.Float64Data(values)
	// the only error these return is for empty input, handled above
	mean, _ := stats.Mean(data)
	stdDev, _ := stats.StandardDeviation(data)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	return WindowStats{
		Count:  len(values),
		Mean:   mean,
		StdDev: stdDev,
		Min:    lo,
		Max:    hi,
	}, true
}

// Sampler periodically writes the window statistics as an influx line, normally to a
// telegraf UDP listener.
type Sampler struct {
	samplingFrequency time.Duration
	out               io.Writer
	source            WindowSource
	clock             clock.Clock
	logger            *zap.Logger
}

func NewSampler(samplingFrequency time.Duration, out io.Writer, source WindowSource, clk clock.Clock, logger *zap.Logger) *Sampler {
	return &Sampler{
		samplingFrequency: samplingFrequency,
		out:               out,
		source:            source,
		clock:             clk,
		logger:            logger,
	}
}

// FormatLine renders one influx line protocol record. It returns false when the window
// is empty.
func (s *Sampler) FormatLine(now time.Time) (string, bool) {
	windowStats, ok := ComputeWindowStats(s.source.Snapshot())
	if !ok {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s,channel=%d ", SamplingChannelName, s.source.SelectedChannel())
	fmt.Fprintf(&b, "count=%di,mean=%.2f,stddev=%.2f,min=%.2f,max=%.2f,dropped=%di",
		windowStats.Count, windowStats.Mean, windowStats.StdDev, windowStats.Min, windowStats.Max, s.source.Dropped())
	fmt.Fprintf(&b, " %d", now.UnixNano())
	return b.String(), true
}

func (s *Sampler) SampleAndLog() {
	line, ok := s.FormatLine(s.clock.Now())
	if !ok {
		return
	}

	if err := s.send(line); err != nil {
		s.logger.Warn("[sampler] error writing data to telemetry connection", zap.Error(err))
	} else {
		s.logger.Debug("[sampler] collected sample", zap.String("influxString", line))
	}
}

func (s *Sampler) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.samplingFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("[sampler] received shutdown signal")
			return
		case <-ticker.C:
			s.SampleAndLog()
		}
	}
}

func (s *Sampler) send(line string) error {
	payload := []byte(line + "\n")
	totalWritten := 0
	for totalWritten < len(payload) {
		n, err := s.out.Write(payload[totalWritten:])
		if err != nil {
			return errors.Wrap(err, "sending influx line")
		}
		totalWritten += n
	}
	return nil
}
