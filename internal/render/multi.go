package render

import (
	"go.uber.org/multierr"

	"sleepywoodpecker/eeg-graph/internal/processing"
)

// Multi renders each frame to every renderer and combines their errors.
type Multi []processing.Renderer

func (m Multi) Render(points []processing.Point) error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.Render(points))
	}
	return err
}
