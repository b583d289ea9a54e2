package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/drunlade/go-qrsz/config"
	"github.com/drunlade/go-qrsz/qrcodec"
	"github.com/drunlade/go-qrsz/qrxfer"
	"golang.org/x/term"
)

var (
	configPath = flag.String("config", "", "configuration file")
	batchSize  = flag.Int("b", 0, "chunks per batch")
	rotation   = flag.Int("r", 0, "display time per frame in milliseconds")
	chunkSize  = flag.Int("c", 0, "base32 characters per data frame")
	cycles     = flag.Int("cycles", 0, "rotations of a batch before moving on")
	passes     = flag.Int("passes", 0, "stop after N passes over the file in text mode (0 = until interrupted)")
	outDir     = flag.String("o", "", "write every frame as a PNG into this directory and exit")
	qrSize     = flag.Int("size", 0, "PNG size in pixels")
	textMode   = flag.Bool("text", false, "print frames as text lines instead of drawing QR codes")
	digest     = flag.String("digest", "", "checksum digest (sha256, blake2b-256)")
	logFile    = flag.String("log", "", "write a debug log to this file")
	verbose    = flag.Bool("v", false, "verbose mode")
	quiet      = flag.Bool("q", false, "quiet mode")
	help       = flag.Bool("h", false, "show help")
	version    = flag.Bool("version", false, "show version")
)

const versionString = "qsz version 0.1.0"

func main() {
	flag.Parse()

	if *help {
		showUsage(0)
	}

	if *version {
		fmt.Println(versionString)
		os.Exit(0)
	}

	files := flag.Args()
	if len(files) != 1 {
		fmt.Fprintf(os.Stderr, "%s: exactly one file must be specified\n", os.Args[0])
		showUsage(1)
	}

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := signalContext(sigChan)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	applyFlags(cfg)

	sessionConfig, err := cfg.Session()
	if err != nil {
		fatal(err)
	}
	sessionConfig.MaxPasses = *passes

	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		fatal(err)
	}
	defer closeLog()

	callbacks := &qrxfer.Callbacks{
		OnError: func(err error, context string) bool {
			fmt.Fprintf(os.Stderr, "Error in %s: %v\n", context, err)
			return false
		},
	}

	session := qrxfer.NewSession(
		qrxfer.WithConfig(sessionConfig),
		qrxfer.WithCallbacks(callbacks),
		qrxfer.WithContext(ctx),
		qrxfer.WithSessionLogger(logger),
	)

	path, err := filepath.Abs(files[0])
	if err != nil {
		fatal(err)
	}
	plan, err := session.Sender().PlanFile(path)
	if err != nil {
		fatal(err)
	}

	if *verbose && !*quiet {
		fmt.Fprintf(os.Stderr, "Sending: %s (%d bytes, %d chunks in %d batches)\n",
			plan.Info.Filename, plan.Info.FileSize, plan.Info.TotalChunks, plan.TotalBatches())
		fmt.Fprintf(os.Stderr, "Checksum: %s %s\n", sessionConfig.Digest, plan.Info.Checksum)
	}

	codec := qrcodec.New(cfg.Sender.QRSize)
	if err := codec.CheckFrames(plan.Frames()); err != nil {
		fatal(fmt.Errorf("%w; try a smaller -c", err))
	}

	if *outDir != "" {
		n, err := exportPlan(plan, codec, *outDir)
		if err != nil {
			fatal(err)
		}
		if !*quiet {
			fmt.Fprintf(os.Stderr, "Wrote %d frames to %s\n", n, *outDir)
		}
		return
	}

	stdoutFd := int(os.Stdout.Fd())
	if *textMode || !term.IsTerminal(stdoutFd) {
		out := bufio.NewWriter(os.Stdout)
		err := session.Transmit(ctx, plan, qrxfer.NewFrameWriter(out))
		out.Flush()
		if err != nil && !errors.Is(err, context.Canceled) {
			fatal(err)
		}
		return
	}

	if w, h, err := term.GetSize(stdoutFd); err == nil && !*quiet {
		if need := symbolSize(codec, plan); need.w > w || need.h > h {
			fmt.Fprintf(os.Stderr, "Warning: QR codes need %dx%d cells, terminal is %dx%d; try a smaller -c\n",
				need.w, need.h, w, h)
			time.Sleep(2 * time.Second)
		}
	}

	m := newModel(plan, codec, sessionConfig)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

// applyFlags overrides configuration values with the flags set on the
// command line.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "b":
			cfg.Sender.BatchSize = *batchSize
		case "r":
			cfg.Sender.RotationMS = *rotation
		case "c":
			cfg.Sender.ChunkSize = *chunkSize
		case "cycles":
			cfg.Sender.CyclesPerBatch = *cycles
		case "size":
			cfg.Sender.QRSize = *qrSize
		case "digest":
			cfg.Digest = *digest
		case "log":
			cfg.Log.Path = *logFile
		}
	})
	if *verbose {
		cfg.Log.Level = "debug"
	}
}

// openLogger returns a no-op logger unless a log file is configured or
// verbose mode is on. The TUI owns the terminal, so stderr logging is
// only used in text mode.
func openLogger(cfg *config.Config) (qrxfer.Logger, func(), error) {
	if cfg.Log.Path == "" && !(*verbose && *textMode) {
		return qrxfer.NoopLogger{}, func() {}, nil
	}
	l, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return l, func() { l.Close() }, nil
}

// exportPlan renders every frame as a numbered PNG and lists the frame
// texts in frames.txt.
func exportPlan(plan *qrxfer.Plan, codec *qrcodec.QRCodec, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	list, err := os.Create(filepath.Join(dir, "frames.txt"))
	if err != nil {
		return 0, err
	}
	defer list.Close()

	w := bufio.NewWriter(list)
	fw := qrxfer.NewFrameWriter(w)
	frames := plan.Frames()
	for i, frame := range frames {
		name := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", i))
		if err := codec.WritePNG(name, frame); err != nil {
			return i, err
		}
		if err := fw.Show(frame); err != nil {
			return i, err
		}
	}
	return len(frames), w.Flush()
}

type cells struct{ w, h int }

// symbolSize measures the largest terminal rendering in the plan. The
// first data frame is as large as any other.
func symbolSize(codec *qrcodec.QRCodec, plan *qrxfer.Plan) cells {
	var size cells
	for _, frame := range plan.BatchFrames(0) {
		s, err := codec.Terminal(frame)
		if err != nil {
			continue
		}
		if w := lipgloss.Width(s); w > size.w {
			size.w = w
		}
		if h := lipgloss.Height(s); h > size.h {
			size.h = h
		}
	}
	return size
}

func fatal(err error) {
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func signalContext(sigChan chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func showUsage(exitcode int) {
	fmt.Fprintf(os.Stderr, `%s - send a file as a rotating sequence of QR codes

Usage: %s [options] file

Options:
  -b N             chunks per batch (default: 10)
  -c N             base32 characters per data frame (default: 2903)
  -config FILE     configuration file (default: ./qrsz.yaml)
  -cycles N        rotations of a batch before moving on (default: 2)
  -digest NAME     checksum digest: sha256 or blake2b-256 (default: sha256)
  -h               show this help message
  -log FILE        write a debug log to FILE
  -o DIR           write every frame as a PNG into DIR and exit
  -passes N        in text mode, stop after N passes (default: until interrupted)
  -q               quiet mode, minimal output
  -r MS            display time per frame in milliseconds (default: 2000)
  -size N          PNG size in pixels (default: 512)
  -text            print frames as text lines instead of drawing QR codes
  -v               verbose mode
  -version         show version

Keys:
  space  pause/resume      n, right  next batch
  p, left  previous batch  q, esc    quit

Examples:
  %s report.pdf                 # Show report.pdf as QR codes
  %s -c 800 -r 500 notes.txt    # Smaller codes, faster rotation
  %s -o frames/ photo.jpg       # Export PNG frames
  %s -text -passes 1 a.txt | %s # Loop back through the text receiver

`, versionString, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], "qrz")
	os.Exit(exitcode)
}
