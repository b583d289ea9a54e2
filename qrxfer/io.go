package qrxfer

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// FrameSource yields scanned frames one at a time. Next returns io.EOF
// when the source is exhausted.
type FrameSource interface {
	Next() (string, error)
}

// Display shows one frame to the camera on the other side.
type Display interface {
	Show(frame string) error
}

// maxLineSize bounds a single input line. A frame never comes close.
const maxLineSize = 64 * 1024

// scannerPrefixes are labels that barcode tools put in front of the
// decoded text.
var scannerPrefixes = []string{"QR-Code:"}

// FrameScanner reads one frame per line, as printed by barcode scanner
// tools such as zbarcam.
type FrameScanner struct {
	scanner *bufio.Scanner
	ctx     context.Context
}

// NewFrameScanner creates a scanner over r.
func NewFrameScanner(r io.Reader) *FrameScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), maxLineSize)
	return &FrameScanner{
		scanner: sc,
		ctx:     context.Background(),
	}
}

// SetContext sets the context for cancellation. It is checked between
// lines; a blocked read is not interrupted.
func (f *FrameScanner) SetContext(ctx context.Context) {
	f.ctx = ctx
}

// Next returns the next non-blank line with surrounding whitespace and any
// scanner label removed.
func (f *FrameScanner) Next() (string, error) {
	for {
		select {
		case <-f.ctx.Done():
			return "", f.ctx.Err()
		default:
		}

		if !f.scanner.Scan() {
			if err := f.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}

		line := strings.TrimSpace(f.scanner.Text())
		for _, p := range scannerPrefixes {
			line = strings.TrimPrefix(line, p)
		}
		if line != "" {
			return line, nil
		}
	}
}

// FrameWriter writes frames one per line. It implements Display.
type FrameWriter struct {
	writer io.Writer
}

// NewFrameWriter creates a frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{writer: w}
}

// Show writes a frame followed by a newline.
func (w *FrameWriter) Show(frame string) error {
	if _, err := io.WriteString(w.writer, frame+"\n"); err != nil {
		return err
	}
	if f, ok := w.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// SliceSource replays a fixed list of frames.
type SliceSource struct {
	frames []string
	pos    int
}

// NewSliceSource creates a source over frames.
func NewSliceSource(frames []string) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next() (string, error) {
	if s.pos >= len(s.frames) {
		return "", io.EOF
	}
	frame := s.frames[s.pos]
	s.pos++
	return frame, nil
}
