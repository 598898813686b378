package processing

import (
	"testing"

	"go.viam.com/test"
)

func TestWindowNeverExceedsCapacity(t *testing.T) {
	w := NewWindow(5)
	for i := 0; i < 23; i++ {
		w.Append(float64(i))
		test.That(t, w.Len(), test.ShouldBeLessThanOrEqualTo, w.Cap())
	}
	test.That(t, w.Len(), test.ShouldEqual, 5)
	test.That(t, w.Snapshot(), test.ShouldResemble, []float64{18, 19, 20, 21, 22})
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	w := NewWindow(3)
	w.Append(1)
	w.Append(2)
	test.That(t, w.Snapshot(), test.ShouldResemble, []float64{1, 2})

	w.Append(3)
	w.Append(4)
	test.That(t, w.Snapshot(), test.ShouldResemble, []float64{2, 3, 4})

	w.Append(5)
	test.That(t, w.Snapshot(), test.ShouldResemble, []float64{3, 4, 5})
}

func TestWindowPlotLength(t *testing.T) {
	w := NewWindow(PlotLength)
	for i := 1; i <= 300; i++ {
		w.Append(float64(i))
	}

	expected := make([]float64, 0, PlotLength)
	for i := 81; i <= 300; i++ {
		expected = append(expected, float64(i))
	}
	test.That(t, w.Snapshot(), test.ShouldResemble, expected)
}

func TestWindowClear(t *testing.T) {
	w := NewWindow(4)
	for i := 0; i < 6; i++ {
		w.Append(float64(i))
	}
	w.Clear()
	test.That(t, w.Len(), test.ShouldEqual, 0)
	test.That(t, w.Snapshot(), test.ShouldBeEmpty)

	w.Append(7)
	test.That(t, w.Snapshot(), test.ShouldResemble, []float64{7})
}

func TestWindowPoints(t *testing.T) {
	w := NewWindow(2)
	w.Append(600)
	w.Append(700)
	w.Append(800)

	test.That(t, w.Points(), test.ShouldResemble, []Point{{X: 0, Y: 700}, {X: 1, Y: 800}})
}

func TestWindowSnapshotIsACopy(t *testing.T) {
	w := NewWindow(2)
	w.Append(1)
	snap := w.Snapshot()
	snap[0] = 42
	test.That(t, w.Snapshot(), test.ShouldResemble, []float64{1})
}

func TestNewWindowClampsCapacity(t *testing.T) {
	w := NewWindow(0)
	test.That(t, w.Cap(), test.ShouldEqual, 1)
	w.Append(1)
	w.Append(2)
	test.That(t, w.Snapshot(), test.ShouldResemble, []float64{2})
}
