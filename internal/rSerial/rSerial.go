// r in rserial stands for "robust"
package rserial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const readTimeout = 5 * time.Millisecond

// Port is the part of serial.Port the reader uses.
type Port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

type rserial struct {
	Port
	MessageQueue  chan<- []byte
	tempBuff      []byte
	logger        *zap.Logger
	portName      string
	stopSequence  []byte
	rawPacketSize int

	packets    atomic.Uint64
	outOfSyncs atomic.Uint64
}

type OutOfSyncError struct {
	ByteSequence []byte
}

func (e *OutOfSyncError) Error() string {
	return fmt.Sprintf("[rserial] incorrect stop sequence detected: %v", e.ByteSequence)
}

// OpenPort opens a serial device in 8N1 mode at the given baud rate.
func OpenPort(portName string, baudrate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "opening serial port %q", portName)
	}
	return port, nil
}

func NewRSerial(port Port, portName string, messageQueue chan<- []byte, logger *zap.Logger, rawPacketSize int, stopSequence []byte) *rserial {
	return &rserial{
		Port:          port,
		MessageQueue:  messageQueue,
		tempBuff:      make([]byte, rawPacketSize),
		logger:        logger,
		portName:      portName,
		stopSequence:  stopSequence,
		rawPacketSize: rawPacketSize,
	}
}

func (r *rserial) initialize(ctx context.Context) error {
	if err := r.SetReadTimeout(readTimeout); err != nil {
		return pkgerrors.Wrap(err, "setting read timeout")
	}
	if err := r.ResetInputBuffer(); err != nil {
		return pkgerrors.Wrap(err, "resetting input buffer")
	}
	return r.sync(ctx)
}

// Run reads frames until ctx is done or the port goes away, then closes MessageQueue.
func (r *rserial) Run(ctx context.Context) error {
	defer close(r.MessageQueue)

	if err := r.initialize(ctx); err != nil {
		if portGone(err) || ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("[rserial] exiting from rserial read loop", zap.String("portName", r.portName))
			return nil
		default:
		}

		err := r.ReadPacket(ctx)
		if err == nil {
			continue
		}

		var oosError *OutOfSyncError
		switch {
		case errors.As(err, &oosError):
			r.outOfSyncs.Inc()
			r.logger.Warn("[rserial] error while attempting to read packet from serial", zap.Error(err), zap.String("portName", r.portName), zap.Binary("payload", oosError.ByteSequence))
			if err := r.sync(ctx); err != nil && portGone(err) {
				return nil
			}
		case portGone(err):
			r.logger.Info("[rserial] serial port closed", zap.String("portName", r.portName))
			return nil
		case ctx.Err() != nil:
		default:
			r.logger.Warn("[rserial] error while attempting to read packet from serial", zap.Error(err), zap.String("portName", r.portName))
		}
	}
}

// ReadPacket reads one full frame and queues a copy of it.
func (r *rserial) ReadPacket(ctx context.Context) error {
	count := 0
	for count < r.rawPacketSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(r.tempBuff[count:])
		if err != nil {
			return err
		}
		count += n
	}

	// validate that the packet is valid by checking the stop sequence at its end
	if !bytes.Equal(r.tempBuff[r.rawPacketSize-len(r.stopSequence):], r.stopSequence) {
		return &OutOfSyncError{
			ByteSequence: bytes.Clone(r.tempBuff),
		}
	}

	select {
	case r.MessageQueue <- bytes.Clone(r.tempBuff):
		r.packets.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sync discards bytes up to and including the next stop sequence terminator.
func (r *rserial) sync(ctx context.Context) error {
	r.logger.Warn("[rserial] resyncing serial port", zap.String("portName", r.portName))
	onebyte := make([]byte, 1)
	last := r.stopSequence[len(r.stopSequence)-1]

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(onebyte)
		if err != nil {
			if portGone(err) {
				return err
			}
			r.logger.Warn("[rserial] error while resyncing serial port", zap.Error(err), zap.String("portName", r.portName))
			continue
		}
		if n == 1 && onebyte[0] == last {
			return nil
		}
	}
}

// Stats returns the number of frames queued and the number of resyncs so far.
func (r *rserial) Stats() (packets, outOfSyncs uint64) {
	return r.packets.Load(), r.outOfSyncs.Load()
}

func portGone(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}
