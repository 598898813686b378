package processing

import (
	"sync"

	"go.uber.org/atomic"
)

// Sample is one reading across all electrodes, in channel order.
type Sample [NumChannels]float64

// Artifact is a sensor artifact notification (blink, jaw clench, headband off).
type Artifact struct {
	HeadbandOn bool
	Blink      bool
	JawClench  bool
}

// SampleLatch holds the most recent reading. Writers overwrite it in place, the drain
// loop takes it at most once. Readings that are overwritten before being taken are
// dropped and counted.
type SampleLatch struct {
	mu      sync.Mutex
	latest  Sample
	stale   bool
	dropped atomic.Uint64
}

func NewSampleLatch() *SampleLatch {
	return &SampleLatch{}
}

// Update stores reading as the latest sample and marks it unconsumed.
func (l *SampleLatch) Update(reading Sample) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stale {
		l.dropped.Inc()
	}
	l.latest = reading
	l.stale = true
}

// Take returns the latest sample and whether it had not been taken yet. The stale flag
// is cleared in the same critical section that copies the sample.
func (l *SampleLatch) Take() (Sample, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fresh := l.stale
	l.stale = false
	return l.latest, fresh
}

// Peek returns the latest sample without consuming it.
func (l *SampleLatch) Peek() (Sample, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.latest, l.stale
}

func (l *SampleLatch) Dropped() uint64 {
	return l.dropped.Load()
}
