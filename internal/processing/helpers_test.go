package processing

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// advanceUntil steps the mock clock until cond holds or a real-time deadline passes.
func advanceUntil(t *testing.T, mockClock *clock.Mock, step time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		mockClock.Add(step)
	}
}

type recordingRenderer struct {
	mu     sync.Mutex
	frames [][]Point
	fail   bool
}

var errRenderFailed = errors.New("render failed")

func (r *recordingRenderer) Render(points []Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errRenderFailed
	}
	r.frames = append(r.frames, points)
	return nil
}

func (r *recordingRenderer) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recordingRenderer) lastFrame() []Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}
