package qrxfer

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger interface for protocol logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// ZerologLogger writes human-readable logs through zerolog.
type ZerologLogger struct {
	log  zerolog.Logger
	file *os.File
}

// NewZerologLogger creates a logger writing to w. Level is a zerolog level
// name ("debug", "info", ...); unknown or empty names mean "info".
func NewZerologLogger(w io.Writer, level string) *ZerologLogger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    w != io.Writer(os.Stderr),
	}
	return &ZerologLogger{
		log: zerolog.New(cw).Level(parseLevel(level)).With().Timestamp().Logger(),
	}
}

// NewFileLogger creates a logger that appends to a file
func NewFileLogger(path string, level string) (*ZerologLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	l := NewZerologLogger(file, level)
	l.file = file
	return l, nil
}

func parseLevel(name string) zerolog.Level {
	if name == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// With returns a child logger that tags every line with key=value.
func (l *ZerologLogger) With(key, value string) *ZerologLogger {
	return &ZerologLogger{log: l.log.With().Str(key, value).Logger()}
}

func (l *ZerologLogger) Debug(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Info(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Error(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

// Close closes the log file, if the logger owns one.
func (l *ZerologLogger) Close() error {
	if l != nil && l.file != nil {
		return l.file.Close()
	}
	return nil
}

// NoopLogger does nothing
type NoopLogger struct{}

func (NoopLogger) Debug(format string, args ...interface{}) {}
func (NoopLogger) Info(format string, args ...interface{})  {}
func (NoopLogger) Error(format string, args ...interface{}) {}

// maxLoggedPayload bounds how much of a frame ends up in a log line.
const maxLoggedPayload = 48

// FormatFrameLog formats a frame for logging with payload truncation
func FormatFrameLog(direction string, text string) string {
	if text == "" {
		return fmt.Sprintf("%s EMPTY", direction)
	}

	msg := fmt.Sprintf("%s %s (len=%d)", direction, FrameTypeName(text[0]), len(text))
	if len(text) > maxLoggedPayload {
		msg += fmt.Sprintf(", frame=%q...[truncated]", text[:maxLoggedPayload])
	} else {
		msg += fmt.Sprintf(", frame=%q", text)
	}
	return msg
}
