package render

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/aybabtme/uniplot/histogram"
	"golang.org/x/term"

	"sleepywoodpecker/eeg-graph/internal/processing"
)

const (
	// RangeMin and RangeMax bound the raw EEG values shown on the Y axis.
	RangeMin = 500.0
	RangeMax = 1100.0

	defaultWidth  = 80
	defaultHeight = 12
	histogramBins = 8

	clearScreen = "\x1b[H\x1b[2J"
)

// TermRenderer draws the window as a text waveform with a stats line underneath.
type TermRenderer struct {
	mu        sync.Mutex
	out       io.Writer
	width     int
	height    int
	clear     bool
	histogram bool
	label     func() string
}

type TermOption func(*TermRenderer)

// WithSize fixes the plot size instead of following the terminal.
func WithSize(width, height int) TermOption {
	return func(r *TermRenderer) {
		r.width = width
		r.height = height
	}
}

// WithHistogram appends an amplitude distribution below the waveform.
func WithHistogram() TermOption {
	return func(r *TermRenderer) { r.histogram = true }
}

// WithLabel sets a function queried on every frame for the header line.
func WithLabel(label func() string) TermOption {
	return func(r *TermRenderer) { r.label = label }
}

func WithoutClear() TermOption {
	return func(r *TermRenderer) { r.clear = false }
}

func NewTermRenderer(out io.Writer, opts ...TermOption) *TermRenderer {
	r := &TermRenderer{
		out:    out,
		width:  terminalWidth(out),
		height: defaultHeight,
		clear:  true,
		label:  func() string { return "raw EEG" },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 10 {
		return defaultWidth
	}
	return width
}

func (r *TermRenderer) Render(points []processing.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := bufio.NewWriter(r.out)
	if r.clear {
		w.WriteString(clearScreen)
	}
	fmt.Fprintf(w, "%s (%d points)\n", r.label(), len(points))
	for _, row := range Rasterize(points, r.width, r.height, RangeMin, RangeMax) {
		w.WriteString(row)
		w.WriteByte('\n')
	}

	values := make([]float64, 0, len(points))
	for _, p := range points {
		values = append(values, p.Y)
	}
	values = processing.FiniteValues(values)
	if windowStats, ok := processing.ComputeWindowStats(values); ok {
		fmt.Fprintf(w, "mean %.1f  sd %.1f  min %.1f  max %.1f\n", windowStats.Mean, windowStats.StdDev, windowStats.Min, windowStats.Max)
		// a flat window has no spread to bin
		if r.histogram && windowStats.Max > windowStats.Min {
			if err := histogram.Fprint(w, histogram.Hist(histogramBins, values), histogram.Linear(r.width/2)); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// Rasterize draws points into height rows of width cells. Each column covers a run of
// consecutive points and is filled between their lowest and highest value. Values
// outside [lo, hi] are clamped to the edge rows; NaN and infinite values are skipped.
func Rasterize(points []processing.Point, width, height int, lo, hi float64) []string {
	if width < 1 || height < 1 {
		return nil
	}
	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	columns := min(width, len(points))
	for col := 0; col < columns; col++ {
		start := col * len(points) / columns
		end := (col + 1) * len(points) / columns
		colMin, colMax := math.Inf(1), math.Inf(-1)
		for _, p := range points[start:end] {
			if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
				continue
			}
			colMin = min(colMin, p.Y)
			colMax = max(colMax, p.Y)
		}
		if colMin > colMax {
			// nothing finite in this column
			continue
		}
		top := rowFor(colMax, height, lo, hi)
		bottom := rowFor(colMin, height, lo, hi)
		for row := top; row <= bottom; row++ {
			grid[row][col] = '*'
		}
	}

	rows := make([]string, height)
	for i, line := range grid {
		rows[i] = strings.TrimRight(string(line), " ")
	}
	return rows
}

// rowFor maps v to a row index, row 0 being the top (hi).
func rowFor(v float64, height int, lo, hi float64) int {
	if hi <= lo {
		return height - 1
	}
	frac := (v - lo) / (hi - lo)
	frac = min(max(frac, 0), 1)
	return int(math.Round((1 - frac) * float64(height-1)))
}
