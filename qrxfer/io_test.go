package qrxfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestFrameScanner(t *testing.T) {
	input := "QR-Code:T" + "YQ==|1|" + abcSum + "|3\n\n   \nD0|IFBEG  \r\nQR-Code:B0|0|1|0\n"
	sc := NewFrameScanner(strings.NewReader(input))

	want := []string{"TYQ==|1|" + abcSum + "|3", "D0|IFBEG", "B0|0|1|0"}
	for _, w := range want {
		got, err := sc.Next()
		if err != nil {
			t.Fatal(err)
		}
		if got != w {
			t.Fatalf("got %q, want %q", got, w)
		}
	}
	if _, err := sc.Next(); err != io.EOF {
		t.Fatalf("want EOF, got %v", err)
	}
}

func TestFrameScannerContext(t *testing.T) {
	sc := NewFrameScanner(strings.NewReader("D0|AA\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc.SetContext(ctx)
	if _, err := sc.Next(); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func TestFrameWriterScannerLoop(t *testing.T) {
	data := randomData(16, 1500)
	plan := testPlan(t, data, 128, 4)

	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	for _, f := range plan.Frames() {
		if err := w.Show(f); err != nil {
			t.Fatal(err)
		}
	}

	_, got, err := NewSession().ReceiveFile(context.Background(), NewFrameScanner(&buf))
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("got %v", err)
	}
}

func TestLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(&buf, "debug")
	l.With("transfer", "abc").Info("Plan: file=%s", "a.txt")
	l.Debug("%s", FormatFrameLog("->", "D0|"+strings.Repeat("A", 100)))

	out := buf.String()
	if !strings.Contains(out, "Plan: file=a.txt") || !strings.Contains(out, "transfer=abc") {
		t.Fatalf("log output %q", out)
	}
	if !strings.Contains(out, "[truncated]") {
		t.Fatalf("long frame not truncated: %q", out)
	}

	buf.Reset()
	NewZerologLogger(&buf, "error").Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at error level: %q", buf.String())
	}
}

func TestFormatFrameLog(t *testing.T) {
	if got := FormatFrameLog("<-", ""); got != "<- EMPTY" {
		t.Errorf("got %q", got)
	}
	if got := FormatFrameLog("<-", "D0|AB"); got != `<- DATA (len=5), frame="D0|AB"` {
		t.Errorf("got %q", got)
	}
}

func TestProgressTracker(t *testing.T) {
	var calls []int
	pt := NewProgressTracker(func(_ string, received, total int, _ float64) {
		calls = append(calls, received)
	}, time.Hour)

	pt.Start("f", 2, 10)
	pt.Update(5)
	if len(calls) != 0 {
		t.Fatalf("callback before interval: %v", calls)
	}
	pt.Complete()
	if len(calls) != 1 || calls[0] != 5 {
		t.Fatalf("calls %v", calls)
	}
}
