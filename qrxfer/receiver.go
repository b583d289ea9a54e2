package qrxfer

import (
	"time"

	"github.com/google/uuid"
)

// ReceiverConfig holds configuration for a receiver.
type ReceiverConfig struct {
	Digest           Digest
	ProgressInterval time.Duration
	Logger           Logger
	Callbacks        *Callbacks
}

// DefaultReceiverConfig returns a default receiver configuration.
func DefaultReceiverConfig() *ReceiverConfig {
	return &ReceiverConfig{
		Digest:           DigestSHA256,
		ProgressInterval: 250 * time.Millisecond,
	}
}

// Receiver feeds scanned frames into a FileTransferState and reports what
// happened through the logger and callbacks. It keeps the state itself
// free of side effects.
type Receiver struct {
	id        string
	state     *FileTransferState
	base      Logger
	logger    Logger
	callbacks *Callbacks
	progress  *ProgressTracker
}

// NewReceiver creates a new receiver. A nil config uses the defaults.
func NewReceiver(config *ReceiverConfig) *Receiver {
	if config == nil {
		config = DefaultReceiverConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = NoopLogger{}
	}
	callbacks := mergeCallbacks(config.Callbacks)

	state := NewFileTransferState()
	state.Digest = config.Digest

	r := &Receiver{
		state:     state,
		base:      logger,
		callbacks: callbacks,
		progress:  NewProgressTracker(callbacks.OnProgress, config.ProgressInterval),
	}
	r.newID()

	r.logger.Info("Receiver created (digest=%s)", config.Digest)
	return r
}

// newID starts a new transfer id. A zerolog logger tags every later line
// with it.
func (r *Receiver) newID() {
	r.id = uuid.NewString()
	r.logger = r.base
	if zl, ok := r.base.(*ZerologLogger); ok {
		r.logger = zl.With("transfer", r.id)
	}
}

// ID identifies the transfer being received. It changes whenever a new
// transfer starts or the receiver is reset.
func (r *Receiver) ID() string {
	return r.id
}

// State returns the underlying transfer state.
func (r *Receiver) State() *FileTransferState {
	return r.state
}

// Reset discards the current transfer so it can be scanned again.
func (r *Receiver) Reset() {
	r.state.Reset()
	r.newID()
	r.logger.Info("Reset: rescanning")
}

// Result returns the verified file once the transfer is complete.
func (r *Receiver) Result() (TransmissionInfo, []byte, bool) {
	if !r.state.IsComplete {
		return TransmissionInfo{}, nil, false
	}
	return *r.state.TransmissionInfo, r.state.Data, true
}

// Ingest applies one scanned frame.
func (r *Receiver) Ingest(text string) (Event, error) {
	f, err := ParseFrame(text)
	if err != nil {
		if !r.state.IsComplete {
			r.logger.Debug("Ingest: ignored %s: %v", FormatFrameLog("<-", text), err)
			r.callbacks.OnIgnored(text, err)
		}
		r.callbacks.OnFrame(EventIgnored, text)
		return EventIgnored, err
	}

	prev := r.state.TransmissionInfo
	ev, err := r.state.Apply(f)
	r.callbacks.OnFrame(ev, text)

	switch ev {
	case EventIgnored:
		if err != nil {
			r.logger.Debug("Ingest: ignored %s: %v", FormatFrameLog("<-", text), err)
			r.callbacks.OnIgnored(text, err)
		}

	case EventDuplicate:
		r.logger.Debug("Ingest: duplicate %s", FormatFrameLog("<-", text))

	case EventHeader, EventNewTransfer:
		if ev == EventNewTransfer {
			r.newID()
		}
		r.startTransfer(ev)

	case EventChunk:
		r.chunkStored(f.Data.ChunkID, text)

	case EventBatch:
		batch := *f.Batch
		r.logger.Debug("Ingest: batch %d/%d (chunks %d..%d)",
			batch.BatchNumber+1, batch.TotalBatches, batch.StartChunk, batch.EndChunk)
		r.callbacks.OnBatch(batch)

	case EventComplete, EventCorrupt:
		// Either the last chunk or a late header can finish a transfer.
		switch {
		case f.Data != nil:
			r.chunkStored(f.Data.ChunkID, text)
		case prev != nil:
			r.newID()
			r.startTransfer(EventNewTransfer)
		default:
			r.startTransfer(EventHeader)
		}
		r.finish(ev, err)
	}

	return ev, err
}

func (r *Receiver) chunkStored(chunkID int, text string) {
	received, total := r.state.Progress()
	r.logger.Debug("Ingest: %s, %d/%d", FormatFrameLog("<-", text), received, total)
	r.callbacks.OnChunk(chunkID, received, total)
	if total > 0 {
		r.progress.Update(received)
	}
}

func (r *Receiver) startTransfer(ev Event) {
	info := *r.state.TransmissionInfo
	received, total := r.state.Progress()
	r.logger.Info("Transfer %s: file=%s, size=%d, chunks=%d, have=%d",
		ev, info.Filename, info.FileSize, total, received)
	r.progress.Start(info.Filename, received, total)
	r.callbacks.OnTransferStart(info)
}

func (r *Receiver) finish(ev Event, err error) {
	info := *r.state.TransmissionInfo
	if ev == EventCorrupt {
		r.logger.Error("Transfer: verification failed: %v", err)
		r.callbacks.OnCorrupt(info, err)
		return
	}

	received, _ := r.state.Progress()
	r.progress.Update(received)
	duration := r.progress.Complete()
	r.logger.Info("Transfer complete: file=%s, %d bytes in %v, %d frames",
		info.Filename, len(r.state.Data), duration, r.state.FramesApplied())
	r.callbacks.OnComplete(info, r.state.Data, duration)
}
