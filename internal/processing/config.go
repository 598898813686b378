package processing

import "time"

const (
	// NumChannels is the number of electrodes in one reading.
	NumChannels = 4

	// PlotLength is the default number of points kept in the display window.
	PlotLength = 220

	DrainInterval         = 2 * time.Millisecond
	LowPowerDrainInterval = 4 * time.Millisecond

	// RedrawPeriod gives a ~30 Hz redraw.
	RedrawPeriod = 33 * time.Millisecond

	DefaultChannel = 1
)

// Config tunes a Graph. The zero value is valid and uses the package defaults.
type Config struct {
	PlotLength int
	// LowPower selects the slower drain interval, used for sensors that stream at a
	// lower rate.
	LowPower bool
	// DrainInterval and RedrawPeriod override the derived defaults when non-zero.
	DrainInterval time.Duration
	RedrawPeriod  time.Duration
}

// ResolvedPlotLength is the window capacity a Graph built from c uses.
func (c Config) ResolvedPlotLength() int {
	if c.PlotLength <= 0 {
		return PlotLength
	}
	return c.PlotLength
}

func (c Config) drainInterval() time.Duration {
	switch {
	case c.DrainInterval > 0:
		return c.DrainInterval
	case c.LowPower:
		return LowPowerDrainInterval
	default:
		return DrainInterval
	}
}

func (c Config) redrawPeriod() time.Duration {
	if c.RedrawPeriod > 0 {
		return c.RedrawPeriod
	}
	return RedrawPeriod
}
