package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sleepywoodpecker/eeg-graph/internal/logger"
	"sleepywoodpecker/eeg-graph/internal/processing"
	rserial "sleepywoodpecker/eeg-graph/internal/rSerial"
	"sleepywoodpecker/eeg-graph/internal/render"
	"sleepywoodpecker/eeg-graph/internal/synth"
)

const LOG_FILE_PATH = "eeg-graph.logs"
const BAUDRATE = 460800
const MESSAGE_QUEUE_LENGTH = 20
const TELEMETRY_PERIOD = 100 * time.Millisecond

const (
	flagPort       = "port"
	flagBaud       = "baud"
	flagLowPower   = "low-power"
	flagChannel    = "channel"
	flagPlotLength = "plot-length"
	flagTelegraf   = "telegraf"
	flagRawLog     = "raw-log"
	flagLogFile    = "log-file"
	flagPNG        = "png"
	flagHistogram  = "histogram"
	flagDebug      = "debug"
)

func main() {
	var log *zap.Logger

	app := &cli.App{
		Name:  "eeg-graph",
		Usage: "plot one channel of a live EEG stream in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagPort,
				Usage: "serial `DEVICE` streaming EEG frames; a synthetic signal is used when empty",
			},
			&cli.IntFlag{
				Name:  flagBaud,
				Value: BAUDRATE,
				Usage: "serial baud rate",
			},
			&cli.BoolFlag{
				Name:  flagLowPower,
				Usage: "headset streams at the low energy rate (220 Hz); drains every 4ms instead of 2ms",
			},
			&cli.IntFlag{
				Name:  flagChannel,
				Value: processing.DefaultChannel,
				Usage: "electrode to plot, 1..4",
			},
			&cli.IntFlag{
				Name:  flagPlotLength,
				Value: processing.PlotLength,
				Usage: "number of points in the sliding window",
			},
			&cli.StringFlag{
				Name:  flagTelegraf,
				Usage: "telegraf UDP `ADDR` to send window statistics to",
			},
			&cli.StringFlag{
				Name:  flagRawLog,
				Usage: "append decoded serial frames as CSV to `FILE`",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Value: LOG_FILE_PATH,
				Usage: "log `FILE`",
			},
			&cli.StringFlag{
				Name:  flagPNG,
				Usage: "save the last frame as a PNG to `FILE` on exit",
			},
			&cli.BoolFlag{
				Name:  flagHistogram,
				Usage: "show the amplitude distribution under the waveform",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			log, err = logger.NewLogger(c.String(flagLogFile), c.Bool(flagDebug))
			return err
		},
		Action: func(c *cli.Context) error {
			defer log.Sync()
			return run(c, log)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context, log *zap.Logger) (err error) {
	// context handler for graceful shutdown
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := processing.Config{
		PlotLength: c.Int(flagPlotLength),
		LowPower:   c.Bool(flagLowPower),
	}

	pngRenderer := render.NewPNGRenderer(cfg.ResolvedPlotLength())
	renderers := render.Multi{pngRenderer}

	var graph *processing.Graph
	termOpts := []render.TermOption{render.WithLabel(func() string {
		return fmt.Sprintf("raw EEG, channel %d (type 1-4 + enter to switch)", graph.SelectedChannel())
	})}
	if c.Bool(flagHistogram) {
		termOpts = append(termOpts, render.WithHistogram())
	}
	renderers = append(renderers, render.NewTermRenderer(os.Stdout, termOpts...))

	graph = processing.NewGraph(renderers, cfg, log)
	if err := graph.SetSelectedChannel(c.Int(flagChannel)); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if portName := c.String(flagPort); portName != "" {
		port, openErr := rserial.OpenPort(portName, c.Int(flagBaud))
		if openErr != nil {
			log.Fatal("[main] error opening serial port", zap.Error(openErr), zap.String("portName", portName))
		}
		defer func() { err = multierr.Append(err, port.Close()) }()

		messageQueue := make(chan []byte, MESSAGE_QUEUE_LENGTH)
		reader := rserial.NewRSerial(port, portName, messageQueue, log, processing.PacketSize, processing.StopSequence)
		processor := processing.NewProcessor(c.String(flagRawLog), messageQueue, log, graph)
		group.Go(func() error {
			// a closed port ends the session the same way a signal does
			defer cancel()
			return reader.Run(groupCtx)
		})
		group.Go(func() error { return processor.Run(groupCtx) })
	} else {
		rate := synth.SampleRate
		if cfg.LowPower {
			rate = synth.LowPowerSampleRate
		}
		source := synth.NewSource(synth.NewGenerator(rate, 8, uint64(time.Now().UnixNano())), graph, clock.New(), log)
		group.Go(func() error { return source.Run(groupCtx) })
	}

	if addr := c.String(flagTelegraf); addr != "" {
		udpConn, dialErr := dialTelegraf(addr)
		if dialErr != nil {
			return dialErr
		}
		defer func() { err = multierr.Append(err, udpConn.Close()) }()

		sampler := processing.NewSampler(TELEMETRY_PERIOD, udpConn, graph, clock.New(), log)
		group.Go(func() error {
			sampler.Run(groupCtx)
			return nil
		})
	}

	go readChannelSelections(os.Stdin, graph, log)

	graph.Start()
	<-groupCtx.Done()
	graph.Close()

	err = group.Wait()
	log.Info("[main] shut down", zap.Uint64("droppedSamples", graph.Dropped()), zap.Int64("frames", graph.FrameStats().Frames))

	if pngPath := c.String(flagPNG); pngPath != "" {
		err = multierr.Append(err, pngRenderer.Save(pngPath))
	}
	return err
}

func dialTelegraf(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving telegraf address %q", addr)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing telegraf at %q", addr)
	}
	return conn, nil
}

// readChannelSelections switches channels from lines typed on in. It returns when in
// is closed; the blocking read is not interruptible, so it is not part of the group.
func readChannelSelections(in io.Reader, graph *processing.Graph, log *zap.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		index, err := strconv.Atoi(line)
		if err != nil {
			log.Warn("[main] ignoring channel selection", zap.String("input", line))
			continue
		}
		// rejection is already logged by the builder
		_ = graph.SetSelectedChannel(index)
	}
}
