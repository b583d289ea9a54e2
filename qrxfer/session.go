package qrxfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Session ties a sender and receivers to the application's display,
// frame source, callbacks and logger.
type Session struct {
	// Configuration
	config *Config

	// Callbacks
	callbacks *Callbacks

	// Context
	ctx context.Context

	// Logger
	logger Logger

	sender *Sender
}

// Config holds session configuration.
type Config struct {
	// Planning
	BatchSize   int
	ChunkSize   int
	MaxFileSize int64
	Digest      Digest

	// Display dwell per frame
	RotationSpeed time.Duration

	// Loops over one batch before moving on; at least 1 in Transmit
	CyclesPerBatch int

	// Full passes over the plan before Transmit returns; 0 = until cancelled
	MaxPasses int

	// Progress update interval
	ProgressInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:        DefaultBatchSize,
		ChunkSize:        DefaultChunkSize,
		MaxFileSize:      DefaultMaxFileSize,
		Digest:           DigestSHA256,
		RotationSpeed:    DefaultRotationSpeed * time.Millisecond,
		CyclesPerBatch:   2,
		MaxPasses:        0,
		ProgressInterval: 250 * time.Millisecond,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the session configuration.
func WithConfig(config *Config) Option {
	return func(s *Session) {
		s.config = config
	}
}

// WithCallbacks sets the session callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(s *Session) {
		s.callbacks = mergeCallbacks(callbacks)
	}
}

// WithContext sets the session context.
func WithContext(ctx context.Context) Option {
	return func(s *Session) {
		s.ctx = ctx
	}
}

// WithSessionLogger sets a logger for protocol debugging.
func WithSessionLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a new session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		config:    DefaultConfig(),
		callbacks: defaultCallbacks(),
		ctx:       context.Background(),
		logger:    NoopLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.sender = NewSender(&SenderConfig{
		BatchSize:     s.config.BatchSize,
		ChunkSize:     s.config.ChunkSize,
		RotationSpeed: s.config.RotationSpeed,
		MaxFileSize:   s.config.MaxFileSize,
		Digest:        s.config.Digest,
		Logger:        s.logger,
	})

	return s
}

// Sender returns the session's sender.
func (s *Session) Sender() *Sender {
	return s.sender
}

// NewReceiver creates a receiver wired to the session's callbacks and logger.
func (s *Session) NewReceiver() *Receiver {
	return NewReceiver(&ReceiverConfig{
		Digest:           s.config.Digest,
		ProgressInterval: s.config.ProgressInterval,
		Logger:           s.logger,
		Callbacks:        s.callbacks,
	})
}

// SendFile plans a file and shows it on display until ctx is done or
// MaxPasses is reached.
func (s *Session) SendFile(ctx context.Context, path string, display Display) error {
	plan, err := s.sender.PlanFile(path)
	if err != nil {
		s.callbacks.OnError(err, "plan file")
		return err
	}
	return s.Transmit(ctx, plan, display)
}

// Transmit rotates the frames of plan through display, one frame per
// RotationSpeed tick.
func (s *Session) Transmit(ctx context.Context, plan *Plan, display Display) error {
	if ctx == nil {
		ctx = s.ctx
	}
	if s.config.RotationSpeed <= 0 {
		return NewError(ErrInvalidConfig, "rotation speed must be positive")
	}

	cycles := s.config.CyclesPerBatch
	if cycles < 1 {
		cycles = 1
	}
	rot := NewRotation(plan, cycles)

	s.logger.Info("Transmit: file=%s, batches=%d, dwell=%v, passes=%d",
		plan.Info.Filename, plan.TotalBatches(), s.config.RotationSpeed, s.config.MaxPasses)

	ticker := time.NewTicker(s.config.RotationSpeed)
	defer ticker.Stop()

	frame := rot.Current()
	for {
		if err := display.Show(frame); err != nil {
			if !s.callbacks.OnError(err, "display frame") {
				return err
			}
		} else {
			s.logger.Debug("%s", FormatFrameLog("->", frame))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame = rot.Next()
		if s.config.MaxPasses > 0 && rot.Passes() >= s.config.MaxPasses {
			s.logger.Info("Transmit: done after %d passes", rot.Passes())
			return nil
		}
	}
}

// ReceiveFile reads frames from src until one transfer completes.
//
// On a verification failure OnError decides: true resets the receiver and
// keeps scanning, false returns the error. If src runs dry first, the
// returned error satisfies IsIncomplete.
func (s *Session) ReceiveFile(ctx context.Context, src FrameSource) (TransmissionInfo, []byte, error) {
	r, err := s.receive(ctx, src)
	if err != nil {
		return TransmissionInfo{}, nil, err
	}
	info, data, _ := r.Result()
	return info, data, nil
}

// receive runs one receiver over src. On an incomplete source it returns
// the receiver along with the error so the partial state can be inspected.
func (s *Session) receive(ctx context.Context, src FrameSource) (*Receiver, error) {
	if ctx == nil {
		ctx = s.ctx
	}

	r := s.NewReceiver()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return r, incompleteError(r.State())
			}
			return nil, err
		}

		ev, err := r.Ingest(text)
		switch ev {
		case EventComplete:
			return r, nil
		case EventCorrupt:
			if s.callbacks.OnError(err, "verify transfer") {
				r.Reset()
				continue
			}
			return nil, err
		}
	}
}

// ReceiveFiles receives transfers until src is exhausted or maxFiles have
// completed (0 means no limit), handing each verified file to sink. A
// transfer identical to the previous one is not handed over twice, since a
// display keeps rotating after the receiver is done. A source that ends
// partway through any other transfer returns the incomplete error.
func (s *Session) ReceiveFiles(ctx context.Context, src FrameSource, maxFiles int,
	sink func(info TransmissionInfo, data []byte) error) error {
	var last *FileTransferState
	filesReceived := 0

	for maxFiles <= 0 || filesReceived < maxFiles {
		r, err := s.receive(ctx, src)
		if err != nil {
			if IsIncomplete(err) && r != nil && repeats(r.State(), last) {
				s.logger.Debug("ReceiveFiles: input ended during a repeat of %s", last.TransmissionInfo.Filename)
				return nil
			}
			return err
		}

		info, data, _ := r.Result()
		if last != nil && *last.TransmissionInfo == info {
			s.logger.Debug("ReceiveFiles: %s already received", info.Filename)
			continue
		}
		last = r.State()

		if err := sink(info, data); err != nil {
			if !s.callbacks.OnError(err, "store file") {
				return err
			}
			continue
		}
		filesReceived++
	}

	return nil
}

// repeats reports whether the partial state holds nothing beyond frames of
// the completed transfer done.
func repeats(partial, done *FileTransferState) bool {
	if done == nil {
		return false
	}
	if partial.TransmissionInfo != nil && *partial.TransmissionInfo != *done.TransmissionInfo {
		return false
	}
	for id, data := range partial.Chunks {
		if prev, ok := done.Chunks[id]; !ok || prev != data {
			return false
		}
	}
	return true
}

// incompleteError describes what is still missing.
func incompleteError(state *FileTransferState) error {
	if state.TransmissionInfo == nil {
		return NewError(ErrIncomplete, fmt.Sprintf("no transmission header (%d chunks held)", len(state.ReceivedChunks)))
	}
	shown := state.firstMissing(10)
	return NewError(ErrIncomplete,
		fmt.Sprintf("%d of %d chunks missing: %v", state.MissingCount(), state.TransmissionInfo.TotalChunks, shown))
}
