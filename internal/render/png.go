package render

import (
	"image/color"
	"math"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"sleepywoodpecker/eeg-graph/internal/processing"
)

// PNGRenderer keeps the last rendered frame and can save it as an image.
type PNGRenderer struct {
	mu         sync.Mutex
	last       []processing.Point
	plotLength int
}

func NewPNGRenderer(plotLength int) *PNGRenderer {
	return &PNGRenderer{plotLength: plotLength}
}

func (r *PNGRenderer) Render(points []processing.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = slices.Clone(points)
	return nil
}

// Frame returns a copy of the last rendered frame.
func (r *PNGRenderer) Frame() []processing.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.last)
}

// Plot builds the plot for the last frame: fixed 500..1100 range and a domain of one
// full window regardless of how many points are present.
func (r *PNGRenderer) Plot() (*plot.Plot, error) {
	points := r.Frame()

	p := plot.New()
	p.Title.Text = "Raw EEG"
	p.BackgroundColor = color.RGBA{R: 114, G: 194, B: 241, A: 255}

	xys := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		if math.IsNaN(pt.Y) || math.IsInf(pt.Y, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(pt.X), Y: pt.Y})
	}
	if len(xys) > 0 {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, errors.Wrap(err, "building waveform line")
		}
		line.LineStyle.Color = color.White
		p.Add(line)
	}

	p.X.Min, p.X.Max = 0, float64(r.plotLength)
	p.Y.Min, p.Y.Max = RangeMin, RangeMax
	return p, nil
}

func (r *PNGRenderer) Save(path string) error {
	p, err := r.Plot()
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 3*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %q", path)
	}
	return nil
}
