package qrcodec

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/drunlade/go-qrsz/qrxfer"
	"github.com/fsnotify/fsnotify"
)

// Image reads are retried because a camera tool may still be writing the
// file when it shows up.
const (
	DefaultReadAttempts = 3
	DefaultRetryDelay   = time.Second
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// IsImage reports whether path has an image extension ReadFile can decode.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// ReadFileRetry calls ReadFile up to attempts times, sleeping delay between
// tries. It gives up early when ctx is done.
func ReadFileRetry(ctx context.Context, c Codec, path string, attempts int, delay time.Duration) (string, error) {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		var text string
		if text, err = ReadFile(c, path); err == nil {
			return text, nil
		}
	}
	return "", err
}

// ImageSource yields the frame in each of a fixed list of image files.
// Files that cannot be read are logged and skipped. It implements
// qrxfer.FrameSource.
type ImageSource struct {
	ctx      context.Context
	codec    Codec
	paths    []string
	pos      int
	logger   qrxfer.Logger
	Attempts int
	Delay    time.Duration
}

// NewImageSource creates a source over paths.
func NewImageSource(ctx context.Context, c Codec, paths []string, logger qrxfer.Logger) *ImageSource {
	if logger == nil {
		logger = qrxfer.NoopLogger{}
	}
	return &ImageSource{
		ctx:      ctx,
		codec:    c,
		paths:    paths,
		logger:   logger,
		Attempts: DefaultReadAttempts,
		Delay:    DefaultRetryDelay,
	}
}

// Next returns the next frame or io.EOF.
func (s *ImageSource) Next() (string, error) {
	for s.pos < len(s.paths) {
		path := s.paths[s.pos]
		s.pos++

		text, err := ReadFileRetry(s.ctx, s.codec, path, s.Attempts, s.Delay)
		if err != nil {
			if s.ctx.Err() != nil {
				return "", s.ctx.Err()
			}
			s.logger.Error("ImageSource: %s: %v", path, err)
			continue
		}
		s.logger.Debug("ImageSource: %s %s", path, qrxfer.FormatFrameLog("<-", text))
		return text, nil
	}
	return "", io.EOF
}

// DirSource watches a directory and yields the frame of every image file
// created or rewritten in it, for cameras and scanner apps that drop
// snapshots into a folder. It implements qrxfer.FrameSource.
type DirSource struct {
	ctx      context.Context
	codec    Codec
	watcher  *fsnotify.Watcher
	logger   qrxfer.Logger
	Attempts int
	Delay    time.Duration
}

// WatchDir starts watching dir. Files already present are not read.
func WatchDir(ctx context.Context, c Codec, dir string, logger qrxfer.Logger) (*DirSource, error) {
	if logger == nil {
		logger = qrxfer.NoopLogger{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	logger.Info("WatchDir: watching %s", dir)
	return &DirSource{
		ctx:      ctx,
		codec:    c,
		watcher:  watcher,
		logger:   logger,
		Attempts: DefaultReadAttempts,
		Delay:    DefaultRetryDelay,
	}, nil
}

// Next blocks until an image arrives and returns its frame. It returns
// ctx.Err() once the context is done and io.EOF after Close.
func (d *DirSource) Next() (string, error) {
	for {
		select {
		case <-d.ctx.Done():
			return "", d.ctx.Err()

		case event, ok := <-d.watcher.Events:
			if !ok {
				return "", io.EOF
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsImage(event.Name) {
				continue
			}

			text, err := ReadFileRetry(d.ctx, d.codec, event.Name, d.Attempts, d.Delay)
			if err != nil {
				if d.ctx.Err() != nil {
					return "", d.ctx.Err()
				}
				d.logger.Error("DirSource: %s: %v", event.Name, err)
				continue
			}
			d.logger.Debug("DirSource: %s %s", event.Name, qrxfer.FormatFrameLog("<-", text))
			return text, nil

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return "", io.EOF
			}
			d.logger.Error("DirSource: watcher: %v", err)
		}
	}
}

// Close stops watching.
func (d *DirSource) Close() error {
	return d.watcher.Close()
}
