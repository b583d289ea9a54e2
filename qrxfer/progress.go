package qrxfer

import (
	"sync"
	"time"
)

// ProgressTracker tracks received chunks and invokes progress callbacks.
type ProgressTracker struct {
	mu sync.Mutex

	filename     string
	received     int
	total        int
	startTime    time.Time
	lastUpdate   time.Time
	lastReceived int

	callback       func(string, int, int, float64)
	updateInterval time.Duration
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(callback func(string, int, int, float64), interval time.Duration) *ProgressTracker {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	return &ProgressTracker{
		callback:       callback,
		updateInterval: interval,
	}
}

// Start begins tracking a new transfer. Chunks that were scanned before
// the header arrived count as already received.
func (pt *ProgressTracker) Start(filename string, received, total int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.filename = filename
	pt.total = total
	pt.received = received
	pt.startTime = time.Now()
	pt.lastUpdate = pt.startTime
	pt.lastReceived = received
}

// Update records the received count and invokes the callback if enough
// time has passed since the last one.
func (pt *ProgressTracker) Update(received int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.received = received

	now := time.Now()
	if now.Sub(pt.lastUpdate) < pt.updateInterval {
		return
	}

	elapsed := now.Sub(pt.lastUpdate).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(received-pt.lastReceived) / elapsed
	}

	if pt.callback != nil {
		pt.callback(pt.filename, received, pt.total, rate)
	}

	pt.lastUpdate = now
	pt.lastReceived = received
}

// Complete marks the transfer as complete and returns the duration.
func (pt *ProgressTracker) Complete() time.Duration {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	duration := time.Since(pt.startTime)

	if pt.callback != nil {
		pt.callback(pt.filename, pt.received, pt.total, 0)
	}

	return duration
}
