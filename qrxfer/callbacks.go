package qrxfer

import "time"

// Callbacks provides hooks for transfer events.
// All callbacks are optional - nil callbacks use default behavior.
type Callbacks struct {
	// OnTransferStart is called when a transmission header is applied,
	// including a header that replaces an earlier transfer.
	OnTransferStart func(info TransmissionInfo)

	// OnChunk is called for every newly stored chunk.
	// received and total count chunks; total is 0 before the header.
	OnChunk func(chunkID, received, total int)

	// OnBatch is called for every batch marker.
	OnBatch func(batch BatchInfo)

	// OnProgress is called periodically while chunks arrive.
	// rate: chunks per second since the previous call
	OnProgress func(filename string, received, total int, rate float64)

	// OnComplete is called once the file is reassembled and verified.
	OnComplete func(info TransmissionInfo, data []byte, duration time.Duration)

	// OnCorrupt is called when every chunk is present but verification fails.
	OnCorrupt func(info TransmissionInfo, err error)

	// OnIgnored is called for frames that could not be used.
	OnIgnored func(text string, err error)

	// OnError is called when an error occurs.
	// context: description of where the error occurred
	// Return true to retry, false to abort.
	OnError func(err error, context string) bool

	// OnFrame is called for every ingested frame (debugging/logging).
	OnFrame func(ev Event, text string)
}

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnTransferStart: func(TransmissionInfo) {},
		OnChunk:         func(int, int, int) {},
		OnBatch:         func(BatchInfo) {},
		OnProgress:      func(string, int, int, float64) {},
		OnComplete:      func(TransmissionInfo, []byte, time.Duration) {},
		OnCorrupt:       func(TransmissionInfo, error) {},
		OnIgnored:       func(string, error) {},
		OnError: func(error, string) bool {
			return false // Don't retry by default
		},
		OnFrame: func(Event, string) {},
	}
}

// mergeCallbacks merges user callbacks with defaults.
// User callbacks override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	def := defaultCallbacks()
	if user == nil {
		return def
	}

	result := *user
	if result.OnTransferStart == nil {
		result.OnTransferStart = def.OnTransferStart
	}
	if result.OnChunk == nil {
		result.OnChunk = def.OnChunk
	}
	if result.OnBatch == nil {
		result.OnBatch = def.OnBatch
	}
	if result.OnProgress == nil {
		result.OnProgress = def.OnProgress
	}
	if result.OnComplete == nil {
		result.OnComplete = def.OnComplete
	}
	if result.OnCorrupt == nil {
		result.OnCorrupt = def.OnCorrupt
	}
	if result.OnIgnored == nil {
		result.OnIgnored = def.OnIgnored
	}
	if result.OnError == nil {
		result.OnError = def.OnError
	}
	if result.OnFrame == nil {
		result.OnFrame = def.OnFrame
	}
	return &result
}
