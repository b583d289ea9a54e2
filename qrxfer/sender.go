package qrxfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// SenderConfig holds configuration for a sender.
type SenderConfig struct {
	BatchSize     int
	ChunkSize     int
	RotationSpeed time.Duration // display dwell per frame
	MaxFileSize   int64
	Digest        Digest
	Logger        Logger
}

// DefaultSenderConfig returns a default sender configuration.
func DefaultSenderConfig() *SenderConfig {
	return &SenderConfig{
		BatchSize:     DefaultBatchSize,
		ChunkSize:     DefaultChunkSize,
		RotationSpeed: DefaultRotationSpeed * time.Millisecond,
		MaxFileSize:   DefaultMaxFileSize,
		Digest:        DigestSHA256,
	}
}

// planConfig extracts the planner settings.
func (c *SenderConfig) planConfig() PlanConfig {
	return PlanConfig{ChunkSize: c.ChunkSize, BatchSize: c.BatchSize, Digest: c.Digest}
}

// Validate checks the configuration.
func (c *SenderConfig) Validate() error {
	if err := c.planConfig().Validate(); err != nil {
		return err
	}
	if c.RotationSpeed <= 0 {
		return NewError(ErrInvalidConfig, fmt.Sprintf("rotation speed %v must be positive", c.RotationSpeed))
	}
	if c.MaxFileSize <= 0 {
		return NewError(ErrInvalidConfig, fmt.Sprintf("max file size %d must be positive", c.MaxFileSize))
	}
	return nil
}

// Sender turns files into transfer plans.
type Sender struct {
	config *SenderConfig
	logger Logger
}

// NewSender creates a new sender. A nil config uses the defaults.
func NewSender(config *SenderConfig) *Sender {
	if config == nil {
		config = DefaultSenderConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Sender{config: config, logger: logger}
}

// Config returns the sender configuration.
func (s *Sender) Config() *SenderConfig {
	return s.config
}

// CheckSize rejects inputs before any chunk is produced.
func (s *Sender) CheckSize(size int64) error {
	if size == 0 {
		return NewError(ErrEmptyInput, "file is empty")
	}
	if size > s.config.MaxFileSize {
		return NewError(ErrOversizeInput,
			fmt.Sprintf("file is %d bytes, limit is %d", size, s.config.MaxFileSize))
	}
	return nil
}

// Plan validates data and builds its transfer plan.
func (s *Sender) Plan(data []byte, filename string) (*Plan, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if err := s.CheckSize(int64(len(data))); err != nil {
		s.logger.Error("Plan: %s rejected: %v", filename, err)
		return nil, err
	}

	plan, err := BuildTransferPlan(data, filename, s.config.planConfig())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Plan: file=%s, size=%d, chunks=%d, batches=%d, checksum=%s",
		filename, plan.Info.FileSize, plan.Info.TotalChunks, plan.TotalBatches(), plan.Info.Checksum)
	return plan, nil
}

// PlanReader reads at most MaxFileSize+1 bytes from r and plans them.
func (s *Sender) PlanReader(r io.Reader, filename string) (*Plan, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.config.MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	return s.Plan(data, filename)
}

// PlanFile plans a file on disk. The size is checked from the file
// metadata before the contents are read.
func (s *Sender) PlanFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if err := s.CheckSize(info.Size()); err != nil {
		return nil, err
	}

	return s.PlanReader(f, filepath.Base(path))
}

// Rotation walks a plan the way a display shows it: the frames of one
// batch in a loop, moving to the next batch after CyclesPerBatch loops.
type Rotation struct {
	plan   *Plan
	frames [][]string

	// CyclesPerBatch is how many times a batch is shown before advancing.
	// Zero or less keeps the current batch until NextBatch is called.
	CyclesPerBatch int

	batch  int
	index  int
	cycles int
	passes int
}

// NewRotation creates a rotation positioned on the first frame.
func NewRotation(plan *Plan, cyclesPerBatch int) *Rotation {
	frames := make([][]string, plan.TotalBatches())
	for i := range frames {
		frames[i] = plan.BatchFrames(i)
	}
	return &Rotation{plan: plan, frames: frames, CyclesPerBatch: cyclesPerBatch}
}

// Current returns the frame on display.
func (r *Rotation) Current() string {
	return r.frames[r.batch][r.index]
}

// Position returns the batch number, the frame index within the batch and
// the frame count of the batch.
func (r *Rotation) Position() (batch, index, count int) {
	return r.batch, r.index, len(r.frames[r.batch])
}

// Passes returns how many times the whole plan has been shown.
func (r *Rotation) Passes() int {
	return r.passes
}

// Next advances to the next frame and returns it.
func (r *Rotation) Next() string {
	r.index++
	if r.index < len(r.frames[r.batch]) {
		return r.Current()
	}

	r.index = 0
	r.cycles++
	if r.CyclesPerBatch > 0 && r.cycles >= r.CyclesPerBatch {
		r.advance(1)
	}
	return r.Current()
}

// NextBatch jumps to the first frame of the next batch.
func (r *Rotation) NextBatch() string {
	r.advance(1)
	return r.Current()
}

// PrevBatch jumps to the first frame of the previous batch.
func (r *Rotation) PrevBatch() string {
	r.advance(-1)
	return r.Current()
}

// Seek jumps to the first frame of batch n.
func (r *Rotation) Seek(n int) string {
	if n >= 0 && n < len(r.frames) {
		r.batch, r.index, r.cycles = n, 0, 0
	}
	return r.Current()
}

func (r *Rotation) advance(step int) {
	n := len(r.frames)
	next := r.batch + step
	if next >= n {
		r.passes++
	}
	r.batch = ((next % n) + n) % n
	r.index = 0
	r.cycles = 0
}
