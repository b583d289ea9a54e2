package qrxfer

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// TransmissionInfo is the transfer header. The sender emits it once per
// transfer; it bounds the chunk id range and carries the integrity data.
type TransmissionInfo struct {
	Filename    string
	TotalChunks int
	Checksum    string // lowercase hex, ChecksumLen characters
	FileSize    int64
}

// DataChunk is one slice of the base32 payload.
type DataChunk struct {
	ChunkID int
	Data    string
}

// BatchInfo describes one display group of consecutive chunks.
// It is a progress hint only; reassembly never depends on it.
type BatchInfo struct {
	StartChunk   int // inclusive
	EndChunk     int // inclusive
	TotalBatches int
	BatchNumber  int
}

// Size returns the number of chunks in the batch.
func (b BatchInfo) Size() int {
	return b.EndChunk - b.StartChunk + 1
}

// Frame is one parsed frame. Exactly one of the record pointers is set,
// matching Tag.
type Frame struct {
	Tag          byte
	Transmission *TransmissionInfo
	Data         *DataChunk
	Batch        *BatchInfo
}

// String serializes the frame back to its text form.
func (f Frame) String() string {
	switch {
	case f.Transmission != nil:
		return EncodeTransmission(*f.Transmission)
	case f.Data != nil:
		return EncodeData(*f.Data)
	case f.Batch != nil:
		return EncodeBatch(*f.Batch)
	default:
		return ""
	}
}

// EncodeTransmission builds a T frame:
//
//	T<base64(filename)>|<totalChunks>|<checksum>|<fileSize>
func EncodeTransmission(info TransmissionInfo) string {
	var b strings.Builder
	b.WriteByte(TagTransmission)
	b.WriteString(base64.StdEncoding.EncodeToString([]byte(info.Filename)))
	b.WriteString(FieldSep)
	b.WriteString(strconv.Itoa(info.TotalChunks))
	b.WriteString(FieldSep)
	b.WriteString(info.Checksum)
	b.WriteString(FieldSep)
	b.WriteString(strconv.FormatInt(info.FileSize, 10))
	return b.String()
}

// EncodeData builds a D frame:
//
//	D<base36(chunkId)>|<data>
func EncodeData(chunk DataChunk) string {
	id := EncodeBase36(chunk.ChunkID)
	var b strings.Builder
	b.Grow(1 + len(id) + 1 + len(chunk.Data))
	b.WriteByte(TagData)
	b.WriteString(id)
	b.WriteString(FieldSep)
	b.WriteString(chunk.Data)
	return b.String()
}

// EncodeBatch builds a B frame:
//
//	B<base36(start)>|<base36(end)>|<base36(totalBatches)>|<base36(batchNumber)>
func EncodeBatch(batch BatchInfo) string {
	return string(TagBatch) + strings.Join([]string{
		EncodeBase36(batch.StartChunk),
		EncodeBase36(batch.EndChunk),
		EncodeBase36(batch.TotalBatches),
		EncodeBase36(batch.BatchNumber),
	}, FieldSep)
}

// ParseFrameTag splits a frame into its tag and payload.
// Empty input and unknown tags are malformed.
func ParseFrameTag(text string) (byte, string, error) {
	if len(text) == 0 {
		return 0, "", malformed("empty frame")
	}
	tag := text[0]
	switch tag {
	case TagTransmission, TagData, TagBatch:
		return tag, text[1:], nil
	default:
		return 0, "", malformed("unknown frame tag 0x%02x", tag)
	}
}

// splitFields splits a payload and checks the field count.
func splitFields(payload string, want int, kind byte) ([]string, error) {
	parts := strings.Split(payload, FieldSep)
	if len(parts) != want {
		return nil, malformed("%s frame has %d fields, want %d", FrameTypeName(kind), len(parts), want)
	}
	return parts, nil
}

// ParseTransmission parses the payload of a T frame.
func ParseTransmission(payload string) (TransmissionInfo, error) {
	parts, err := splitFields(payload, 4, TagTransmission)
	if err != nil {
		return TransmissionInfo{}, err
	}

	name, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		// Some encoders drop the '=' padding.
		name, err = base64.RawStdEncoding.DecodeString(parts[0])
		if err != nil {
			return TransmissionInfo{}, malformed("bad filename encoding")
		}
	}

	total, err := parseDecimal(parts[1])
	if err != nil {
		return TransmissionInfo{}, err
	}
	if total < 1 || total > 1<<31-1 {
		return TransmissionInfo{}, malformed("total chunks %d out of range", total)
	}

	sum := strings.ToLower(parts[2])
	if !validChecksum(sum) {
		return TransmissionInfo{}, malformed("bad checksum %q", parts[2])
	}

	size, err := parseDecimal(parts[3])
	if err != nil {
		return TransmissionInfo{}, err
	}
	// Every chunk but the one of an empty file carries at least one character.
	if limit := maxChunksFor(size); total > limit {
		return TransmissionInfo{}, malformed("total chunks %d exceeds %d for %d bytes", total, limit, size)
	}

	return TransmissionInfo{
		Filename:    string(name),
		TotalChunks: int(total),
		Checksum:    sum,
		FileSize:    size,
	}, nil
}

// maxChunksFor bounds the chunk count of a size-byte file: one per base32
// character, at least one.
func maxChunksFor(size int64) int64 {
	const maxTotal = 1<<31 - 1
	if size >= maxTotal {
		return maxTotal
	}
	n := (size*8 + 4) / 5
	if n < 1 {
		return 1
	}
	if n > maxTotal {
		return maxTotal
	}
	return n
}

// ParseData parses the payload of a D frame. The chunk data is returned
// verbatim.
func ParseData(payload string) (DataChunk, error) {
	parts, err := splitFields(payload, 2, TagData)
	if err != nil {
		return DataChunk{}, err
	}

	id, err := DecodeBase36(parts[0])
	if err != nil {
		return DataChunk{}, err
	}

	return DataChunk{ChunkID: id, Data: parts[1]}, nil
}

// ParseBatch parses the payload of a B frame.
func ParseBatch(payload string) (BatchInfo, error) {
	parts, err := splitFields(payload, 4, TagBatch)
	if err != nil {
		return BatchInfo{}, err
	}

	var v [4]int
	for i, p := range parts {
		if v[i], err = DecodeBase36(p); err != nil {
			return BatchInfo{}, err
		}
	}

	batch := BatchInfo{StartChunk: v[0], EndChunk: v[1], TotalBatches: v[2], BatchNumber: v[3]}
	if batch.StartChunk > batch.EndChunk {
		return BatchInfo{}, malformed("batch range %d..%d is reversed", batch.StartChunk, batch.EndChunk)
	}
	if batch.BatchNumber >= batch.TotalBatches {
		return BatchInfo{}, malformed("batch %d of %d", batch.BatchNumber, batch.TotalBatches)
	}
	return batch, nil
}

// ParseFrame parses any frame.
func ParseFrame(text string) (Frame, error) {
	tag, payload, err := ParseFrameTag(text)
	if err != nil {
		return Frame{}, err
	}

	f := Frame{Tag: tag}
	switch tag {
	case TagTransmission:
		info, err := ParseTransmission(payload)
		if err != nil {
			return Frame{}, err
		}
		f.Transmission = &info
	case TagData:
		chunk, err := ParseData(payload)
		if err != nil {
			return Frame{}, err
		}
		f.Data = &chunk
	case TagBatch:
		batch, err := ParseBatch(payload)
		if err != nil {
			return Frame{}, err
		}
		f.Batch = &batch
	default:
		return Frame{}, malformed("unknown frame tag 0x%02x", tag)
	}
	return f, nil
}
