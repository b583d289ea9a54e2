package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/drunlade/go-qrsz/qrcodec"
	"github.com/drunlade/go-qrsz/qrxfer"
)

func testPlan(t *testing.T) *qrxfer.Plan {
	t.Helper()
	plan, err := qrxfer.BuildTransferPlan([]byte("hello from the sender side"), "hello.txt",
		qrxfer.PlanConfig{ChunkSize: 10, BatchSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func TestExportPlan(t *testing.T) {
	plan := testPlan(t)
	dir := filepath.Join(t.TempDir(), "out")

	n, err := exportPlan(plan, qrcodec.New(256), dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(plan.Frames()) {
		t.Fatalf("exported %d frames, want %d", n, len(plan.Frames()))
	}

	list, err := os.ReadFile(filepath.Join(dir, "frames.txt"))
	if err != nil {
		t.Fatal(err)
	}
	_, data, err := qrxfer.NewSession().ReceiveFile(context.Background(),
		qrxfer.NewFrameScanner(strings.NewReader(string(list))))
	if err != nil || string(data) != "hello from the sender side" {
		t.Fatalf("frames.txt does not reproduce the file: %v", err)
	}

	text, err := qrcodec.ReadFile(qrcodec.New(0), filepath.Join(dir, "frame-0000.png"))
	if err != nil || text != plan.Frames()[0] {
		t.Fatalf("frame-0000.png = %q, %v", text, err)
	}
}

func TestModelRotation(t *testing.T) {
	plan := testPlan(t)
	cfg := qrxfer.DefaultConfig()
	cfg.RotationSpeed = time.Millisecond
	cfg.CyclesPerBatch = 1

	m := newModel(plan, qrcodec.New(0), cfg)
	if m.frame != plan.Frames()[0] || m.symbol == "" {
		t.Fatalf("initial frame %q", m.frame)
	}

	next, _ := m.Update(tickMsg{gen: m.gen})
	m = next.(model)
	if m.frame != plan.Frames()[1] {
		t.Fatalf("after tick %q", m.frame)
	}

	// A tick from an older chain is dropped.
	next, cmd := m.Update(tickMsg{gen: m.gen - 1})
	if next.(model).frame != m.frame || cmd != nil {
		t.Fatal("stale tick advanced the rotation")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = next.(model)
	if !m.paused {
		t.Fatal("space did not pause")
	}
	next, _ = m.Update(tickMsg{gen: m.gen})
	if next.(model).frame != m.frame {
		t.Fatal("paused model advanced")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m = next.(model)
	if b, i, _ := m.rot.Position(); b != 1 || i != 0 {
		t.Fatalf("next batch moved to %d/%d", b, i)
	}
	if !strings.Contains(m.View(), "batch 2/") {
		t.Fatalf("view does not show the batch:\n%s", m.View())
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
}
