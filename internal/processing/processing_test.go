package processing

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
)

type sinkRecorder struct {
	mu      sync.Mutex
	samples []Sample
}

func (s *sinkRecorder) OnSample(reading Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, reading)
}

func encodePacket(t *testing.T, packet DataPacket) []byte {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, binary.Write(&buf, binary.LittleEndian, packet), test.ShouldBeNil)
	buf.Write(StopSequence)
	return buf.Bytes()
}

func TestPacketSize(t *testing.T) {
	test.That(t, PacketSize, test.ShouldEqual, 4+4+4*4+2)
}

func TestProcessPacket(t *testing.T) {
	sink := &sinkRecorder{}
	p := NewProcessor("", nil, zaptest.NewLogger(t), sink)

	var out bytes.Buffer
	raw := encodePacket(t, DataPacket{PacketNumber: 7, Timestamp: 1234, RawReadings: [NumChannels]float32{800.5, 810, 820.25, 830}})
	test.That(t, p.ProcessPacket(raw, &out), test.ShouldBeNil)

	test.That(t, out.String(), test.ShouldEqual, "7,1234,800.50,810.00,820.25,830.00\n")
	test.That(t, sink.samples, test.ShouldResemble, []Sample{{800.5, 810, 820.25, 830}})
}

func TestProcessPacketShort(t *testing.T) {
	sink := &sinkRecorder{}
	p := NewProcessor("", nil, zaptest.NewLogger(t), sink)

	err := p.ProcessPacket([]byte{1, 2, 3}, &bytes.Buffer{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, sink.samples, test.ShouldBeEmpty)
}

func TestProcessPacketSequenceGaps(t *testing.T) {
	p := NewProcessor("", nil, zaptest.NewLogger(t), &sinkRecorder{})

	for _, n := range []uint32{1, 2, 5, 6, 10} {
		test.That(t, p.ProcessPacket(encodePacket(t, DataPacket{PacketNumber: n}), &bytes.Buffer{}), test.ShouldBeNil)
	}
	test.That(t, p.Missed(), test.ShouldEqual, uint64(5))
}

func TestProcessorRunWritesRawLog(t *testing.T) {
	rawLog := filepath.Join(t.TempDir(), "raw.csv")
	queue := make(chan []byte, 3)
	sink := &sinkRecorder{}
	p := NewProcessor(rawLog, queue, zaptest.NewLogger(t), sink)

	queue <- encodePacket(t, DataPacket{PacketNumber: 1, RawReadings: [NumChannels]float32{1, 2, 3, 4}})
	queue <- []byte("garbage")
	queue <- encodePacket(t, DataPacket{PacketNumber: 2, RawReadings: [NumChannels]float32{5, 6, 7, 8}})
	close(queue)

	test.That(t, p.Run(context.Background()), test.ShouldBeNil)
	test.That(t, sink.samples, test.ShouldHaveLength, 2)

	contents, err := os.ReadFile(rawLog)
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	test.That(t, lines, test.ShouldResemble, []string{
		"1,0,1.00,2.00,3.00,4.00",
		"2,0,5.00,6.00,7.00,8.00",
	})
}

func TestProcessorRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProcessor("", make(chan []byte), zaptest.NewLogger(t), &sinkRecorder{})
	test.That(t, p.Run(ctx), test.ShouldBeNil)
}

func TestProcessorRunBadRawLogPath(t *testing.T) {
	rawLog := filepath.Join(t.TempDir(), "missing", "raw.csv")
	p := NewProcessor(rawLog, make(chan []byte), zaptest.NewLogger(t), &sinkRecorder{})
	test.That(t, p.Run(context.Background()), test.ShouldNotBeNil)
}

func TestProcessPacketRejectsNonFiniteReadings(t *testing.T) {
	for _, bad := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		sink := &sinkRecorder{}
		p := NewProcessor("", nil, zaptest.NewLogger(t), sink)

		var out bytes.Buffer
		raw := encodePacket(t, DataPacket{PacketNumber: 3, RawReadings: [NumChannels]float32{800, bad, 810, 820}})
		test.That(t, p.ProcessPacket(raw, &out), test.ShouldNotBeNil)
		test.That(t, out.Len(), test.ShouldEqual, 0)
		test.That(t, sink.samples, test.ShouldBeEmpty)
	}
}

func TestProcessPacketCounterReset(t *testing.T) {
	p := NewProcessor("", nil, zaptest.NewLogger(t), &sinkRecorder{})

	for _, n := range []uint32{100, 101, 102, 0, 1, 2} {
		test.That(t, p.ProcessPacket(encodePacket(t, DataPacket{PacketNumber: n}), &bytes.Buffer{}), test.ShouldBeNil)
	}
	test.That(t, p.Missed(), test.ShouldEqual, uint64(0))

	test.That(t, p.ProcessPacket(encodePacket(t, DataPacket{PacketNumber: 2}), &bytes.Buffer{}), test.ShouldBeNil)
	test.That(t, p.ProcessPacket(encodePacket(t, DataPacket{PacketNumber: 6}), &bytes.Buffer{}), test.ShouldBeNil)
	test.That(t, p.Missed(), test.ShouldEqual, uint64(3))
}
