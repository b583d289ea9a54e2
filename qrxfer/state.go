package qrxfer

import (
	"fmt"
	"strings"
)

// Event tells the caller what a single ingested frame did to the state.
type Event int

const (
	EventIgnored     Event = iota // frame malformed, out of range, or state already complete
	EventHeader                   // first T frame applied
	EventNewTransfer              // a different T frame replaced the previous transfer
	EventChunk                    // new chunk stored
	EventDuplicate                // chunk or header already known; nothing changed
	EventBatch                    // B frame recorded
	EventComplete                 // last chunk stored and the file verified
	EventCorrupt                  // all chunks present but verification failed
)

func (e Event) String() string {
	switch e {
	case EventIgnored:
		return "ignored"
	case EventHeader:
		return "header"
	case EventNewTransfer:
		return "new-transfer"
	case EventChunk:
		return "chunk"
	case EventDuplicate:
		return "duplicate"
	case EventBatch:
		return "batch"
	case EventComplete:
		return "complete"
	case EventCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Status is the coarse position of a transfer in its lifecycle.
type Status int

const (
	StatusEmpty     Status = iota // no frame seen
	StatusReceiving               // header or chunks missing
	StatusCorrupt                 // every chunk seen, verification failed; needs Reset
	StatusComplete                // verified; terminal
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusReceiving:
		return "receiving"
	case StatusCorrupt:
		return "corrupt"
	case StatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// FileTransferState is the receiver side of one transfer. The caller owns
// it and feeds it frames one at a time; it is not safe for concurrent use.
//
// Frames may arrive in any order and any number of times. Chunks that
// arrive before the header are kept and checked against its range once it
// is known.
type FileTransferState struct {
	// TransmissionInfo is nil until a T frame has been applied.
	TransmissionInfo *TransmissionInfo

	Chunks         map[int]string
	ReceivedChunks map[int]struct{}


	// CurrentBatch is the last batch marker seen. Progress display only.
	CurrentBatch *BatchInfo
	SeenBatches  map[int]struct{}

	IsComplete bool

	// Data holds the verified file once IsComplete is set.
	Data []byte

	// Corrupt holds the verification error when every chunk is present
	// but the file does not match the header.
	Corrupt error

	// Digest must match the sender's. The zero value means DigestSHA256.
	Digest Digest

	// missing is |[0, TotalChunks) - ReceivedChunks| once the header is
	// known. Missing builds the set on demand.
	missing int
	frames  int
}

// NewFileTransferState returns an empty state.
func NewFileTransferState() *FileTransferState {
	s := &FileTransferState{}
	s.Reset()
	return s
}

// Reset discards everything received so far, for a forced rescan.
// The digest setting is kept.
func (s *FileTransferState) Reset() {
	s.TransmissionInfo = nil
	s.CurrentBatch = nil
	s.IsComplete = false
	s.Data = nil
	s.Corrupt = nil
	s.frames = 0
	s.resetChunks()
}

func (s *FileTransferState) resetChunks() {
	s.Chunks = make(map[int]string)
	s.ReceivedChunks = make(map[int]struct{})
	s.missing = 0
	s.SeenBatches = make(map[int]struct{})
}

// IngestFrame parses one scanned frame and applies it.
//
// A malformed frame returns EventIgnored and an error for which
// IsMalformed is true; the state is unchanged and the caller should simply
// wait for the next scan. A verification failure returns EventCorrupt and
// an error for which IsCorrupt is true.
func (s *FileTransferState) IngestFrame(text string) (Event, error) {
	if s.IsComplete {
		return EventIgnored, nil
	}
	f, err := ParseFrame(text)
	if err != nil {
		return EventIgnored, err
	}
	return s.Apply(f)
}

// Apply applies an already parsed frame.
func (s *FileTransferState) Apply(f Frame) (Event, error) {
	if s.IsComplete {
		return EventIgnored, nil
	}
	if s.Chunks == nil {
		s.resetChunks()
	}
	s.frames++

	switch {
	case f.Transmission != nil:
		return s.applyHeader(*f.Transmission)
	case f.Data != nil:
		return s.applyChunk(*f.Data)
	case f.Batch != nil:
		return s.applyBatch(*f.Batch)
	default:
		return EventIgnored, malformed("empty frame record")
	}
}

func (s *FileTransferState) applyHeader(info TransmissionInfo) (Event, error) {
	if info.TotalChunks < 1 {
		return EventIgnored, malformed("total chunks %d out of range", info.TotalChunks)
	}
	ev := EventHeader
	if s.TransmissionInfo != nil {
		if *s.TransmissionInfo == info {
			return EventDuplicate, nil
		}
		// No transfer id on the wire: a different header means a new file.
		s.resetChunks()
		s.CurrentBatch = nil
		s.Corrupt = nil
		ev = EventNewTransfer
	}

	s.TransmissionInfo = &info

	// Drop early chunks that cannot belong to this transfer.
	for id := range s.ReceivedChunks {
		if id >= info.TotalChunks {
			delete(s.ReceivedChunks, id)
			delete(s.Chunks, id)
		}
	}

	s.missing = info.TotalChunks - len(s.ReceivedChunks)

	return s.tryComplete(ev)
}

func (s *FileTransferState) applyChunk(chunk DataChunk) (Event, error) {
	if s.TransmissionInfo != nil && chunk.ChunkID >= s.TransmissionInfo.TotalChunks {
		return EventIgnored, NewChunkError(ErrMalformedFrame,
			fmt.Sprintf("chunk id beyond total of %d", s.TransmissionInfo.TotalChunks), chunk.ChunkID)
	}
	if _, ok := s.ReceivedChunks[chunk.ChunkID]; ok {
		return EventDuplicate, nil
	}

	s.Chunks[chunk.ChunkID] = chunk.Data
	s.ReceivedChunks[chunk.ChunkID] = struct{}{}
	if s.TransmissionInfo != nil {
		s.missing--
	}

	return s.tryComplete(EventChunk)
}

func (s *FileTransferState) applyBatch(batch BatchInfo) (Event, error) {
	if s.TransmissionInfo != nil && batch.EndChunk >= s.TransmissionInfo.TotalChunks {
		return EventIgnored, malformed("batch range %d..%d beyond total of %d",
			batch.StartChunk, batch.EndChunk, s.TransmissionInfo.TotalChunks)
	}
	s.CurrentBatch = &batch
	s.SeenBatches[batch.BatchNumber] = struct{}{}
	return EventBatch, nil
}

// tryComplete reassembles once the header is known and nothing is missing.
func (s *FileTransferState) tryComplete(ev Event) (Event, error) {
	if s.TransmissionInfo == nil || s.missing > 0 {
		return ev, nil
	}

	data, err := s.Assemble()
	if err != nil {
		s.Corrupt = err
		return EventCorrupt, err
	}

	s.Data = data
	s.IsComplete = true
	s.Corrupt = nil
	return EventComplete, nil
}

// Assemble concatenates the chunks in id order, decodes them and checks
// the result against the header: length first, then the digest.
func (s *FileTransferState) Assemble() ([]byte, error) {
	info := s.TransmissionInfo
	if info == nil {
		return nil, NewError(ErrIncomplete, "no transmission header")
	}
	if n := s.missing; n > 0 {
		return nil, NewError(ErrIncomplete, fmt.Sprintf("%d chunks missing", n))
	}

	var text strings.Builder
	for id := 0; id < info.TotalChunks; id++ {
		text.WriteString(s.Chunks[id])
	}

	data := DecodeBase32(text.String())
	if int64(len(data)) != info.FileSize {
		return nil, NewError(ErrSizeMismatch,
			fmt.Sprintf("reassembled %d bytes, header says %d", len(data), info.FileSize))
	}

	digest := s.Digest
	if digest == "" {
		digest = DigestSHA256
	}
	if sum := digest.Sum(data); !strings.EqualFold(sum, info.Checksum) {
		return nil, NewError(ErrChecksumMismatch,
			fmt.Sprintf("%s %s, header says %s", digest, sum, info.Checksum))
	}

	return data, nil
}

// Status returns where the transfer stands.
func (s *FileTransferState) Status() Status {
	switch {
	case s.IsComplete:
		return StatusComplete
	case s.Corrupt != nil:
		return StatusCorrupt
	case s.TransmissionInfo == nil && len(s.ReceivedChunks) == 0 && s.CurrentBatch == nil:
		return StatusEmpty
	default:
		return StatusReceiving
	}
}

// Missing returns the missing chunk ids in ascending order. It is empty
// while the header is unknown.
func (s *FileTransferState) Missing() []int {
	return s.firstMissing(s.missing)
}

// firstMissing returns up to n missing ids in ascending order.
func (s *FileTransferState) firstMissing(n int) []int {
	if s.TransmissionInfo == nil {
		return []int{}
	}
	if n > s.missing {
		n = s.missing
	}
	ids := make([]int, 0, n)
	for id := 0; id < s.TransmissionInfo.TotalChunks && len(ids) < n; id++ {
		if _, ok := s.ReceivedChunks[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// MissingCount returns len(Missing()) without building the list.
func (s *FileTransferState) MissingCount() int {
	return s.missing
}

// Progress returns the received chunk count and the total, which is 0
// while the header is unknown.
func (s *FileTransferState) Progress() (received, total int) {
	if s.TransmissionInfo != nil {
		total = s.TransmissionInfo.TotalChunks
	}
	return len(s.ReceivedChunks), total
}

// FramesApplied returns how many parsed frames reached the state.
func (s *FileTransferState) FramesApplied() int {
	return s.frames
}
