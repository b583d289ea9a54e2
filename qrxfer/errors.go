package qrxfer

import (
	"errors"
	"fmt"
)

// Error represents a protocol error
type Error struct {
	// Type is the error type
	Type ErrorType

	// Message is a human-readable error message
	Message string

	// ChunkID is the chunk involved in the error, or -1
	ChunkID int
}

// ErrorType categorizes protocol errors
type ErrorType int

const (
	// ErrMalformedFrame indicates a frame that could not be parsed.
	// Callers ignore the frame and wait for the next scan.
	ErrMalformedFrame ErrorType = iota

	// ErrChecksumMismatch indicates the reassembled digest disagrees with the header
	ErrChecksumMismatch

	// ErrSizeMismatch indicates the reassembled length disagrees with the header
	ErrSizeMismatch

	// ErrIncomplete indicates chunks are still missing
	ErrIncomplete

	// ErrOversizeInput indicates the input exceeds the configured maximum
	ErrOversizeInput

	// ErrEmptyInput indicates a zero-length input file
	ErrEmptyInput

	// ErrInvalidConfig indicates an unusable configuration value
	ErrInvalidConfig

	// ErrCodec indicates the QR codec failed to render or read a symbol
	ErrCodec
)

func (e *Error) Error() string {
	if e.ChunkID >= 0 {
		return fmt.Sprintf("qrxfer %s: %s (chunk: %d)", e.Type, e.Message, e.ChunkID)
	}
	return fmt.Sprintf("qrxfer %s: %s", e.Type, e.Message)
}

func (t ErrorType) String() string {
	switch t {
	case ErrMalformedFrame:
		return "malformed frame"
	case ErrChecksumMismatch:
		return "checksum mismatch"
	case ErrSizeMismatch:
		return "size mismatch"
	case ErrIncomplete:
		return "incomplete transfer"
	case ErrOversizeInput:
		return "oversize input"
	case ErrEmptyInput:
		return "empty input"
	case ErrInvalidConfig:
		return "invalid config"
	case ErrCodec:
		return "codec error"
	default:
		return "unknown error"
	}
}

// NewError creates a new protocol error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		ChunkID: -1,
	}
}

// NewChunkError creates a new protocol error tied to a chunk id
func NewChunkError(errType ErrorType, message string, chunkID int) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		ChunkID: chunkID,
	}
}

func malformed(format string, args ...interface{}) *Error {
	return NewError(ErrMalformedFrame, fmt.Sprintf(format, args...))
}

func hasType(err error, types ...ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, t := range types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// IsMalformed checks if an error reports an unparseable frame
func IsMalformed(err error) bool {
	return hasType(err, ErrMalformedFrame)
}

// IsCorrupt checks if an error reports a reassembly that failed verification.
// The caller has to rescan the whole transfer.
func IsCorrupt(err error) bool {
	return hasType(err, ErrChecksumMismatch, ErrSizeMismatch)
}

// IsOversize checks if an error reports an input rejected for its size
func IsOversize(err error) bool {
	return hasType(err, ErrOversizeInput)
}

// IsIncomplete checks if an error reports missing chunks
func IsIncomplete(err error) bool {
	return hasType(err, ErrIncomplete)
}
