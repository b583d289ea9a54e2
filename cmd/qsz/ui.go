package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/drunlade/go-qrsz/qrcodec"
	"github.com/drunlade/go-qrsz/qrxfer"
)

// tickMsg advances the rotation. gen ties it to the tick chain that
// scheduled it so a pause and resume never leaves two chains running.
type tickMsg struct {
	gen int
}

// model shows the frames of a plan one at a time, the way qrxfer.Session
// does in text mode, but drawn as QR codes.
type model struct {
	plan  *qrxfer.Plan
	rot   *qrxfer.Rotation
	codec *qrcodec.QRCodec
	dwell time.Duration

	frame  string
	symbol string
	err    error

	paused bool
	gen    int

	progress progress.Model
	width    int
	height   int
}

func newModel(plan *qrxfer.Plan, codec *qrcodec.QRCodec, cfg *qrxfer.Config) model {
	m := model{
		plan:     plan,
		rot:      qrxfer.NewRotation(plan, cfg.CyclesPerBatch),
		codec:    codec,
		dwell:    cfg.RotationSpeed,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	m.show(m.rot.Current())
	return m
}

func (m *model) show(frame string) {
	m.frame = frame
	m.symbol, m.err = m.codec.Terminal(frame)
}

func (m model) tick() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.dwell, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 4
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
			m.gen++
			if !m.paused {
				return m, m.tick()
			}
		case "n", "right":
			m.show(m.rot.NextBatch())
			return m, m.restart()
		case "p", "left":
			m.show(m.rot.PrevBatch())
			return m, m.restart()
		}

	case tickMsg:
		if m.paused || msg.gen != m.gen {
			return m, nil
		}
		m.show(m.rot.Next())
		return m, m.tick()
	}

	return m, nil
}

// restart gives a frame chosen by hand a full dwell.
func (m *model) restart() tea.Cmd {
	m.gen++
	if m.paused {
		return nil
	}
	return m.tick()
}

func (m model) View() string {
	var b strings.Builder

	batch, index, count := m.rot.Position()
	total := m.plan.TotalBatches()

	title := titleStyle.Render(fmt.Sprintf("qsz  %s  %d bytes", m.plan.Info.Filename, m.plan.Info.FileSize))
	if m.paused {
		title += " " + pausedStyle.Render("PAUSED")
	}
	b.WriteString(title + "\n\n")

	if m.err != nil {
		b.WriteString(errorMessageStyle(m.err.Error()) + "\n")
	} else {
		b.WriteString(symbolStyle.Render(strings.TrimRight(m.symbol, "\n")) + "\n")
	}

	status := fmt.Sprintf("batch %d/%d  frame %d/%d  %s  pass %d",
		batch+1, total, index+1, count, qrxfer.FrameTypeName(m.frame[0]), m.rot.Passes()+1)
	b.WriteString(statusStyle.Render(status) + "\n")
	b.WriteString(m.progress.ViewAs(float64(batch+1)/float64(total)) + "\n")
	b.WriteString(helpStyle("space pause • n/→ next batch • p/← previous batch • q quit"))

	return docStyle.Render(b.String())
}
