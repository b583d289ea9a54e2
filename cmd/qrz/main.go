package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drunlade/go-qrsz/config"
	"github.com/drunlade/go-qrsz/qrcodec"
	"github.com/drunlade/go-qrsz/qrxfer"
	"golang.org/x/term"
)

var (
	configPath = flag.String("config", "", "configuration file")
	outDir     = flag.String("d", "", "directory for received files")
	watchDir   = flag.String("watch", "", "read frames from images dropped into this directory")
	multi      = flag.Bool("multi", false, "keep receiving files until the input ends")
	overwrite  = flag.Bool("y", false, "overwrite existing files")
	protect    = flag.Bool("p", false, "protect existing files")
	digest     = flag.String("digest", "", "checksum digest (sha256, blake2b-256)")
	logFile    = flag.String("log", "", "write a debug log to this file")
	verbose    = flag.Bool("v", false, "verbose mode")
	quiet      = flag.Bool("q", false, "quiet mode")
	help       = flag.Bool("h", false, "show help")
	version    = flag.Bool("version", false, "show version")
)

const versionString = "qrz version 0.1.0"

func main() {
	flag.Parse()

	if *help {
		showUsage(0)
	}

	if *version {
		fmt.Println(versionString)
		os.Exit(0)
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
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "d":
			cfg.Receiver.OutputDir = *outDir
		case "y":
			cfg.Receiver.Overwrite = *overwrite
		case "digest":
			cfg.Digest = *digest
		case "log":
			cfg.Log.Path = *logFile
		}
	})
	if *verbose {
		cfg.Log.Level = "debug"
	}

	sessionConfig, err := cfg.Session()
	if err != nil {
		fatal(err)
	}

	var logger qrxfer.Logger = qrxfer.NoopLogger{}
	if cfg.Log.Path != "" || *verbose {
		l, err := cfg.Logger()
		if err != nil {
			fatal(err)
		}
		defer l.Close()
		logger = l
	}

	policy := keepBoth
	switch {
	case *protect:
		policy = protectExisting
	case cfg.Receiver.Overwrite:
		policy = overwriteExisting
	}

	interactive := term.IsTerminal(int(os.Stderr.Fd()))

	// Create callbacks
	callbacks := &qrxfer.Callbacks{
		OnTransferStart: func(info qrxfer.TransmissionInfo) {
			if *verbose && !*quiet {
				fmt.Fprintf(os.Stderr, "Receiving: %s (%d bytes, %d chunks)\n",
					info.Filename, info.FileSize, info.TotalChunks)
			}
		},
		OnProgress: func(filename string, received, total int, rate float64) {
			if *quiet || !interactive || total == 0 {
				return
			}
			percent := float64(received) / float64(total) * 100
			fmt.Fprintf(os.Stderr, "\r%s: %d/%d chunks %.1f%% (%.1f chunks/s)", filename, received, total, percent, rate)
		},
		OnComplete: func(info qrxfer.TransmissionInfo, data []byte, duration time.Duration) {
			if *verbose && !*quiet {
				fmt.Fprintf(os.Stderr, "\nVerified: %s (%d bytes in %v)\n", info.Filename, len(data), duration.Round(time.Millisecond))
			}
		},
		OnCorrupt: func(info qrxfer.TransmissionInfo, err error) {
			if !*quiet {
				fmt.Fprintf(os.Stderr, "\n%s failed verification (%v), rescan the whole transfer\n", info.Filename, err)
			}
		},
		OnError: func(err error, context string) bool {
			if context == "verify transfer" {
				// Start over; the sender keeps rotating.
				return true
			}
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

	src, closeSrc, err := openSource(ctx, logger)
	if err != nil {
		fatal(err)
	}
	defer closeSrc()

	maxFiles := 1
	if *multi {
		maxFiles = 0
	}

	err = session.ReceiveFiles(ctx, src, maxFiles, func(info qrxfer.TransmissionInfo, data []byte) error {
		path, err := storeFile(cfg.Receiver.OutputDir, info.Filename, data, policy)
		if err != nil {
			return err
		}
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s\n", path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fatal(err)
	}
}

// openSource picks the frame source: a watched directory, image files
// named on the command line, or text lines on stdin.
func openSource(ctx context.Context, logger qrxfer.Logger) (qrxfer.FrameSource, func(), error) {
	codec := qrcodec.New(0)

	if *watchDir != "" {
		ds, err := qrcodec.WatchDir(ctx, codec, *watchDir, logger)
		if err != nil {
			return nil, nil, err
		}
		if !*quiet {
			fmt.Fprintf(os.Stderr, "Watching %s for QR snapshots\n", *watchDir)
		}
		return ds, func() { ds.Close() }, nil
	}

	if images := flag.Args(); len(images) > 0 {
		return qrcodec.NewImageSource(ctx, codec, images, logger), func() {}, nil
	}

	sc := qrxfer.NewFrameScanner(os.Stdin)
	sc.SetContext(ctx)
	return sc, func() {}, nil
}

func fatal(err error) {
	if !*quiet {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
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
	fmt.Fprintf(os.Stderr, `%s - receive a file sent as a sequence of QR codes

Usage: %s [options] [image...]

Frames are read from the images given, from a watched directory, or one
per line from stdin (as printed by zbarcam --raw or qsz -text).

Options:
  -config FILE     configuration file (default: ./qrsz.yaml)
  -d DIR           directory for received files (default: .)
  -digest NAME     checksum digest: sha256 or blake2b-256 (default: sha256)
  -h               show this help message
  -log FILE        write a debug log to FILE
  -multi           keep receiving files until the input ends
  -p               protect existing files
  -q               quiet mode, minimal output
  -v               verbose mode
  -version         show version
  -watch DIR       read frames from images dropped into DIR
  -y               overwrite existing files

Examples:
  zbarcam --raw | %s            # Scan with a webcam
  %s shots/*.png                # Decode a folder of photos
  %s -watch ~/Pictures -multi   # Pick up phone snapshots as they sync

`, versionString, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	os.Exit(exitcode)
}
