package processing

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ErrInvalidChannel is matched by every *InvalidChannelError.
var ErrInvalidChannel = errors.New("invalid channel")

type InvalidChannelError struct {
	Index int
}

func (e *InvalidChannelError) Error() string {
	return fmt.Sprintf("[windowBuilder] channel %d outside 1..%d", e.Index, NumChannels)
}

func (e *InvalidChannelError) Is(target error) bool {
	return target == ErrInvalidChannel
}

// WindowBuilder drains the latch into the window for the selected channel.
type WindowBuilder struct {
	latch  *SampleLatch
	window *Window
	logger *zap.Logger
	loop   *tickLoop

	// mu orders channel changes against drains so that no value of the old channel
	// lands in the window after it was cleared.
	mu      sync.Mutex
	channel int
}

func NewWindowBuilder(latch *SampleLatch, window *Window, interval time.Duration, clk clock.Clock, logger *zap.Logger) *WindowBuilder {
	b := &WindowBuilder{
		latch:   latch,
		window:  window,
		logger:  logger,
		channel: DefaultChannel,
	}
	b.loop = newTickLoop("windowBuilder", interval, clk, logger, func() { b.Drain() })
	return b
}

// Drain runs one drain tick and reports whether a sample was folded into the window.
// Only the latest sample is ever folded; samples overwritten in the latch between two
// ticks are lost.
func (b *WindowBuilder) Drain() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	sample, fresh := b.latch.Take()
	if !fresh {
		return false
	}
	b.window.Append(sample[b.channel-1])
	return true
}

// SetSelectedChannel switches the displayed channel and empties the window. index is
// 1-based. An out of range index is rejected and nothing changes.
func (b *WindowBuilder) SetSelectedChannel(index int) error {
	if index < 1 || index > NumChannels {
		b.logger.Warn("[windowBuilder] rejected channel selection", zap.Int("channel", index))
		return &InvalidChannelError{Index: index}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.channel
	b.channel = index
	b.window.Clear()
	b.logger.Debug("[windowBuilder] selected channel", zap.Int("channel", index), zap.Int("previous", previous))
	return nil
}

func (b *WindowBuilder) SelectedChannel() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channel
}

func (b *WindowBuilder) Start() bool {
	return b.loop.start()
}

func (b *WindowBuilder) Stop() bool {
	return b.loop.stop()
}

func (b *WindowBuilder) Running() bool {
	return b.loop.running()
}
