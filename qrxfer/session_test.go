package qrxfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestReceiverCallbacks(t *testing.T) {
	data := randomData(11, 600)
	plan := testPlan(t, data, 100, 3)

	var (
		started   []TransmissionInfo
		chunks    int
		batches   int
		ignored   int
		completed []byte
	)
	r := NewReceiver(&ReceiverConfig{
		Callbacks: &Callbacks{
			OnTransferStart: func(info TransmissionInfo) { started = append(started, info) },
			OnChunk:         func(int, int, int) { chunks++ },
			OnBatch:         func(BatchInfo) { batches++ },
			OnIgnored:       func(string, error) { ignored++ },
			OnComplete: func(_ TransmissionInfo, d []byte, _ time.Duration) {
				completed = d
			},
		},
	})

	frames := append([]string{"noise", "D"}, plan.Frames()...)
	for _, f := range frames {
		r.Ingest(f)
	}

	if len(started) != 1 || started[0] != plan.Info {
		t.Errorf("started %+v", started)
	}
	if chunks != plan.Info.TotalChunks {
		t.Errorf("OnChunk called %d times, want %d", chunks, plan.Info.TotalChunks)
	}
	if batches != plan.TotalBatches() {
		t.Errorf("OnBatch called %d times, want %d", batches, plan.TotalBatches())
	}
	if ignored != 2 {
		t.Errorf("OnIgnored called %d times", ignored)
	}
	if !bytes.Equal(completed, data) {
		t.Error("OnComplete data mismatch")
	}

	info, got, ok := r.Result()
	if !ok || info != plan.Info || !bytes.Equal(got, data) {
		t.Error("Result mismatch")
	}
}

func TestReceiverNewTransferChangesID(t *testing.T) {
	a := testPlan(t, []byte("alpha"), 100, 10)
	b := testPlan(t, []byte("bravo"), 100, 10)

	r := NewReceiver(nil)
	r.Ingest(EncodeTransmission(a.Info))
	id := r.ID()
	if ev, _ := r.Ingest(EncodeTransmission(a.Info)); ev != EventDuplicate || r.ID() != id {
		t.Fatalf("repeat header: %s, id changed=%v", ev, r.ID() != id)
	}
	if ev, _ := r.Ingest(EncodeTransmission(b.Info)); ev != EventNewTransfer || r.ID() == id {
		t.Fatalf("new header: %s, id changed=%v", ev, r.ID() != id)
	}
}

func TestReceiverTagsLogsWithID(t *testing.T) {
	a := testPlan(t, []byte("alpha"), 100, 10)
	b := testPlan(t, []byte("bravo"), 100, 10)

	var buf bytes.Buffer
	r := NewReceiver(&ReceiverConfig{Logger: NewZerologLogger(&buf, "debug")})
	r.Ingest(EncodeTransmission(a.Info))
	first := r.ID()
	if !strings.Contains(buf.String(), "transfer="+first) {
		t.Fatalf("log not tagged with %s:\n%s", first, buf.String())
	}

	buf.Reset()
	r.Ingest(EncodeTransmission(b.Info))
	if out := buf.String(); !strings.Contains(out, "transfer="+r.ID()) || strings.Contains(out, first) {
		t.Fatalf("new transfer logged under the old id:\n%s", out)
	}
}

// A header that replaces a transfer drops its chunks, so it cannot
// complete the file it announces on its own.
func TestReceiverReplacingHeaderStartsOver(t *testing.T) {
	a := testPlan(t, []byte("alpha"), 100, 10)
	b := testPlan(t, []byte("bravo"), 100, 10)

	r := NewReceiver(nil)
	r.Ingest(EncodeTransmission(a.Info))
	frame, _ := b.ChunkFrame(0)
	r.Ingest(frame)
	id := r.ID()

	if ev, _ := r.Ingest(EncodeTransmission(b.Info)); ev != EventNewTransfer || r.ID() == id {
		t.Fatalf("got %s, id changed=%v", ev, r.ID() != id)
	}
	if received, _ := r.State().Progress(); received != 0 {
		t.Fatalf("%d chunks carried over", received)
	}
	if ev, _ := r.Ingest(frame); ev != EventComplete {
		t.Fatalf("rescanned chunk gave %s", ev)
	}
}

func TestReceiverCompleteOnLateHeader(t *testing.T) {
	plan := testPlan(t, []byte("late header"), 100, 10)
	var done bool
	r := NewReceiver(&ReceiverConfig{Callbacks: &Callbacks{
		OnComplete: func(TransmissionInfo, []byte, time.Duration) { done = true },
	}})

	frame, _ := plan.ChunkFrame(0)
	r.Ingest(frame)
	if ev, err := r.Ingest(EncodeTransmission(plan.Info)); ev != EventComplete || err != nil {
		t.Fatalf("got %s, %v", ev, err)
	}
	if !done {
		t.Fatal("OnComplete not called")
	}
}

func TestSessionReceiveFile(t *testing.T) {
	data := randomData(12, 2000)
	plan := testPlan(t, data, 200, 4)

	s := NewSession()
	info, got, err := s.ReceiveFile(context.Background(), NewSliceSource(plan.Frames()))
	if err != nil {
		t.Fatal(err)
	}
	if info != plan.Info || !bytes.Equal(got, data) {
		t.Fatal("received file differs")
	}
}

func TestSessionReceiveFileIncomplete(t *testing.T) {
	plan := testPlan(t, randomData(13, 2000), 200, 4)
	frames := plan.Frames()

	_, _, err := NewSession().ReceiveFile(context.Background(), NewSliceSource(frames[:len(frames)-2]))
	if !IsIncomplete(err) {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Fatalf("error does not list missing chunks: %v", err)
	}

	_, _, err = NewSession().ReceiveFile(context.Background(), NewSliceSource(nil))
	if !IsIncomplete(err) {
		t.Fatalf("empty source: %v", err)
	}
}

func TestSessionReceiveFileCorruptRetry(t *testing.T) {
	data := randomData(14, 100)
	plan := testPlan(t, data, 1000, 10)
	good := plan.Frames()

	bad := append([]string(nil), good...)
	last := bad[len(bad)-1]
	bad[len(bad)-1] = last[:3] + flip(last[3]) + last[4:]

	var corrupt int
	retry := NewSession(WithCallbacks(&Callbacks{
		OnCorrupt: func(TransmissionInfo, error) { corrupt++ },
		OnError:   func(error, string) bool { return true },
	}))
	_, got, err := retry.ReceiveFile(context.Background(), NewSliceSource(append(bad, good...)))
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("retry: %v", err)
	}
	if corrupt != 1 {
		t.Fatalf("OnCorrupt called %d times", corrupt)
	}

	_, _, err = NewSession().ReceiveFile(context.Background(), NewSliceSource(bad))
	if !IsCorrupt(err) {
		t.Fatalf("abort: %v", err)
	}
}

func flip(c byte) string {
	if c == 'A' {
		return "B"
	}
	return "A"
}

func TestSessionReceiveFiles(t *testing.T) {
	a := testPlan(t, []byte("first"), 100, 10)
	b := testPlan(t, []byte("second"), 100, 10)

	// The display keeps rotating after each transfer finishes.
	var frames []string
	frames = append(frames, a.Frames()...)
	frames = append(frames, a.Frames()...)
	frames = append(frames, b.Frames()...)
	frames = append(frames, b.Frames()[:1]...)

	var got []string
	err := NewSession().ReceiveFiles(context.Background(), NewSliceSource(frames), 0,
		func(_ TransmissionInfo, data []byte) error {
			got = append(got, string(data))
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("got %q", got)
	}

	got = nil
	err = NewSession().ReceiveFiles(context.Background(), NewSliceSource(frames), 1,
		func(_ TransmissionInfo, data []byte) error {
			got = append(got, string(data))
			return nil
		})
	if err != nil || len(got) != 1 {
		t.Fatalf("maxFiles=1: %q, %v", got, err)
	}
}

func TestSessionReceiveFilesTruncatedTransfer(t *testing.T) {
	a := testPlan(t, []byte("first file body"), 4, 2)
	b := testPlan(t, []byte("second file, a little longer"), 4, 2)

	receive := func(tail ...string) ([]string, error) {
		frames := append(append([]string{}, a.Frames()...), tail...)
		var got []string
		err := NewSession().ReceiveFiles(context.Background(), NewSliceSource(frames), 0,
			func(_ TransmissionInfo, data []byte) error {
				got = append(got, string(data))
				return nil
			})
		return got, err
	}

	// Header, batch marker and one chunk of the next file, then nothing.
	got, err := receive(b.Frames()[:3]...)
	if !IsIncomplete(err) {
		t.Fatalf("truncated second file: err = %v", err)
	}
	if len(got) != 1 || got[0] != "first file body" {
		t.Fatalf("got %q", got)
	}

	// Trailing chunks of the finished file, without its header.
	aFrames := a.Frames()
	if got, err := receive(aFrames[len(aFrames)-1]); err != nil || len(got) != 1 {
		t.Fatalf("repeat tail: %q, %v", got, err)
	}

	// A chunk the finished file never had.
	if _, err := receive("D0|ZZZZ"); !IsIncomplete(err) {
		t.Fatalf("foreign chunk: err = %v", err)
	}

	// Nothing at all is still an error.
	err = NewSession().ReceiveFiles(context.Background(), NewSliceSource(nil), 0,
		func(TransmissionInfo, []byte) error { return nil })
	if !IsIncomplete(err) {
		t.Fatalf("empty source: err = %v", err)
	}
}

func TestSessionReceiveFileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewSession().ReceiveFile(ctx, NewSliceSource([]string{"D0|AA"}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

type recordingDisplay struct {
	mu     sync.Mutex
	frames []string
}

func (d *recordingDisplay) Show(frame string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, frame)
	return nil
}

func TestSessionTransmit(t *testing.T) {
	data := randomData(15, 500)
	plan := testPlan(t, data, 100, 3)

	cfg := DefaultConfig()
	cfg.RotationSpeed = time.Millisecond
	cfg.CyclesPerBatch = 1
	cfg.MaxPasses = 2
	s := NewSession(WithConfig(cfg))

	d := &recordingDisplay{}
	if err := s.Transmit(context.Background(), plan, d); err != nil {
		t.Fatal(err)
	}

	per := len(plan.Frames())
	if len(d.frames) != 2*per {
		t.Fatalf("showed %d frames, want %d", len(d.frames), 2*per)
	}

	// What was shown is enough to receive the file.
	_, got, err := NewSession().ReceiveFile(context.Background(), NewSliceSource(d.frames))
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("receive shown frames: %v", err)
	}
}

func TestSessionTransmitCancel(t *testing.T) {
	plan := testPlan(t, []byte("x"), 100, 10)
	cfg := DefaultConfig()
	cfg.RotationSpeed = time.Hour
	s := NewSession(WithConfig(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	d := &recordingDisplay{}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := s.Transmit(ctx, plan, d); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func TestSessionSendFileRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	err := NewSession().SendFile(context.Background(), path, NewFrameWriter(io.Discard))
	if !hasType(err, ErrEmptyInput) {
		t.Fatalf("got %v", err)
	}
}
