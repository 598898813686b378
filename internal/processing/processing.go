package processing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SampleSink receives decoded readings. *Graph is the usual sink.
type SampleSink interface {
	OnSample(Sample)
}

// DataPacket is the little-endian payload of one serial frame, followed on the wire by
// StopSequence.
type DataPacket struct {
	PacketNumber uint32
	Timestamp    uint32
	RawReadings  [NumChannels]float32
}

var StopSequence = []byte{'\r', '\n'}

// PacketSize is the length of one frame on the wire, stop sequence included.
var PacketSize = binary.Size(DataPacket{}) + len(StopSequence)

// Processor decodes frames from the serial queue and hands the readings to a sink. When
// Filename is set every decoded frame is also appended to it as a CSV row.
type Processor struct {
	Filename     string
	MessageQueue <-chan []byte
	logger       *zap.Logger
	sink         SampleSink

	lastPacket  uint32
	havePacket  bool
	missedTotal uint64
}

func NewProcessor(filename string, messageQueue <-chan []byte, logger *zap.Logger, sink SampleSink) *Processor {
	return &Processor{
		Filename:     filename,
		MessageQueue: messageQueue,
		logger:       logger,
		sink:         sink,
	}
}

func (p *Processor) Run(ctx context.Context) error {
	var out io.Writer = io.Discard
	if p.Filename != "" {
		file, err := os.OpenFile(p.Filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrapf(err, "opening raw log %q", p.Filename)
		}
		defer file.Close()

		writer := bufio.NewWriter(file)
		defer writer.Flush()
		out = writer
	}

	for {
		select {
		case packet, ok := <-p.MessageQueue:
			if !ok {
				p.logger.Info("[processor] message queue closed", zap.String("outputFile", p.Filename))
				return nil
			}

			if err := p.ProcessPacket(packet, out); err != nil {
				p.logger.Warn(
					"[processor] error decoding byte packet",
					zap.Error(err),
					zap.Int("packetLength", len(packet)),
					zap.String("outputFile", p.Filename),
					zap.Binary("rawBytes", packet),
				)
			}
		case <-ctx.Done():
			p.logger.Info("[processor] received shutdown signal", zap.String("outputFile", p.Filename))
			return nil
		}
	}
}

// ProcessPacket decodes one frame, writes its CSV row to outStream and forwards the
// readings to the sink. A frame carrying a NaN or infinite reading is corrupt even when
// its stop sequence lines up; it is rejected and nothing is written or forwarded.
func (p *Processor) ProcessPacket(packet []byte, outStream io.Writer) error {
	payloadSize := PacketSize - len(StopSequence)
	if len(packet) < payloadSize {
		return errors.Errorf("short packet: got %d bytes, want %d", len(packet), payloadSize)
	}

	var decoded DataPacket
	if err := binary.Read(bytes.NewReader(packet[:payloadSize]), binary.LittleEndian, &decoded); err != nil {
		return errors.Wrap(err, "decoding packet")
	}
	for i, v := range decoded.RawReadings {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Errorf("packet %d: channel %d reading is not finite", decoded.PacketNumber, i+1)
		}
	}

	p.trackSequence(decoded.PacketNumber)

	if _, err := fmt.Fprintf(
		outStream,
		"%d,%d,%.2f,%.2f,%.2f,%.2f\n",
		decoded.PacketNumber,
		decoded.Timestamp,
		decoded.RawReadings[0],
		decoded.RawReadings[1],
		decoded.RawReadings[2],
		decoded.RawReadings[3],
	); err != nil {
		return errors.Wrap(err, "writing raw log row")
	}

	var reading Sample
	for i, v := range decoded.RawReadings {
		reading[i] = float64(v)
	}
	p.sink.OnSample(reading)
	return nil
}

func (p *Processor) trackSequence(packetNumber uint32) {
	if p.havePacket && packetNumber <= p.lastPacket {
		p.logger.Info("[processor] packet counter went backwards, assuming device reset",
			zap.Uint32("previous", p.lastPacket),
			zap.Uint32("current", packetNumber),
		)
	} else if p.havePacket && packetNumber != p.lastPacket+1 {
		missed := uint64(packetNumber - p.lastPacket - 1)
		p.missedTotal += missed
		p.logger.Debug("[processor] packet sequence gap",
			zap.Uint32("previous", p.lastPacket),
			zap.Uint32("current", packetNumber),
			zap.Uint64("missedTotal", p.missedTotal),
		)
	}
	p.lastPacket = packetNumber
	p.havePacket = true
}

// Missed returns how many packet numbers were skipped so far.
func (p *Processor) Missed() uint64 {
	return p.missedTotal
}
