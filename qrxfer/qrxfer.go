// Package qrxfer implements a file transfer protocol carried by a stream of
// QR codes.
//
// A sender encodes a file as base32 text, slices it into fixed-size chunks,
// groups the chunks into batches and serializes everything as short text
// frames, one per QR symbol. A receiver ingests scanned frames in any order,
// tracks which chunks are still missing, and reassembles and verifies the
// file once every chunk has been seen.
//
// The codec, planner and reconstruction state are pure functions over
// caller-owned values. Sender and Receiver wrap them with logging,
// callbacks and progress tracking for applications.
package qrxfer

// Frame tags. Every frame starts with exactly one of these characters.
const (
	// TagTransmission starts the transfer header frame.
	TagTransmission = 'T'

	// TagData starts a data chunk frame.
	TagData = 'D'

	// TagBatch starts a batch marker frame.
	TagBatch = 'B'
)

// FieldSep separates the fields inside a frame payload.
const FieldSep = "|"

// Capacity limits of the optical channel.
const (
	// MaxQRCapacity is the byte capacity of a version 40 QR symbol at the
	// lowest error correction level.
	MaxQRCapacity = 2953

	// FrameOverhead is reserved for the tag, chunk id and separator.
	FrameOverhead = 50

	// DefaultChunkSize is the payload carried by one data frame.
	DefaultChunkSize = MaxQRCapacity - FrameOverhead

	// DefaultBatchSize is the number of chunks shown per rotation cycle.
	DefaultBatchSize = 10

	// DefaultRotationSpeed is the display dwell per frame in milliseconds.
	DefaultRotationSpeed = 2000

	// DefaultMaxFileSize bounds the input accepted by a Sender.
	DefaultMaxFileSize = 50 * 1024 * 1024
)

// FrameTypeName returns the human-readable name for a frame tag.
// Returns "UNKNOWN" for anything else.
func FrameTypeName(tag byte) string {
	switch tag {
	case TagTransmission:
		return "TRANSMISSION"
	case TagData:
		return "DATA"
	case TagBatch:
		return "BATCH"
	default:
		return "UNKNOWN"
	}
}
