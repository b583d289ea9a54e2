package qrxfer

import "fmt"

// Batch is one display group: its marker plus the chunks it covers.
type Batch struct {
	Info   BatchInfo
	Chunks []DataChunk
}

// Plan is everything a sender displays for one file.
type Plan struct {
	Info    TransmissionInfo
	Batches []Batch
}

// PlanConfig holds the sizes used to cut a payload into frames.
type PlanConfig struct {
	ChunkSize int // base32 characters per data frame
	BatchSize int // chunks per batch
	Digest    Digest
}

// DefaultPlanConfig returns the default chunk and batch sizes.
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		ChunkSize: DefaultChunkSize,
		BatchSize: DefaultBatchSize,
		Digest:    DigestSHA256,
	}
}

// Validate checks that the sizes are usable.
func (c PlanConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return NewError(ErrInvalidConfig, fmt.Sprintf("chunk size %d must be positive", c.ChunkSize))
	}
	if c.ChunkSize > DefaultChunkSize {
		return NewError(ErrInvalidConfig, fmt.Sprintf("chunk size %d exceeds QR capacity %d less %d for the frame header",
			c.ChunkSize, MaxQRCapacity, FrameOverhead))
	}
	if c.BatchSize <= 0 {
		return NewError(ErrInvalidConfig, fmt.Sprintf("batch size %d must be positive", c.BatchSize))
	}
	if _, err := ParseDigest(string(c.Digest)); err != nil {
		return err
	}
	return nil
}

// SplitChunks slices text into consecutive chunks of chunkSize characters.
// The last chunk may be shorter. Chunk ids are offset/chunkSize, so they
// run from 0 without gaps. Empty text yields a single empty chunk, keeping
// at least one chunk per transfer.
func SplitChunks(text string, chunkSize int) []DataChunk {
	if chunkSize <= 0 {
		panic("qrxfer: non-positive chunk size")
	}
	if len(text) == 0 {
		return []DataChunk{{ChunkID: 0, Data: ""}}
	}

	chunks := make([]DataChunk, 0, (len(text)+chunkSize-1)/chunkSize)
	for off := 0; off < len(text); off += chunkSize {
		end := off + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, DataChunk{
			ChunkID: off / chunkSize,
			Data:    text[off:end],
		})
	}
	return chunks
}

// GroupBatches groups chunks into consecutive batches of batchSize.
// The last batch may be shorter.
func GroupBatches(chunks []DataChunk, batchSize int) []Batch {
	if batchSize <= 0 {
		panic("qrxfer: non-positive batch size")
	}

	total := (len(chunks) + batchSize - 1) / batchSize
	batches := make([]Batch, 0, total)
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		members := chunks[i:end]
		batches = append(batches, Batch{
			Info: BatchInfo{
				StartChunk:   members[0].ChunkID,
				EndChunk:     members[len(members)-1].ChunkID,
				TotalBatches: total,
				BatchNumber:  i / batchSize,
			},
			Chunks: members,
		})
	}
	return batches
}

// BuildTransferPlan computes the checksum, encodes and cuts data into
// batches of frames. It does not enforce a maximum size; Sender does.
func BuildTransferPlan(data []byte, filename string, cfg PlanConfig) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	digest, _ := ParseDigest(string(cfg.Digest))
	chunks := SplitChunks(EncodeBase32(data), cfg.ChunkSize)

	return &Plan{
		Info: TransmissionInfo{
			Filename:    filename,
			TotalChunks: len(chunks),
			Checksum:    digest.Sum(data),
			FileSize:    int64(len(data)),
		},
		Batches: GroupBatches(chunks, cfg.BatchSize),
	}, nil
}

// TotalBatches returns the number of batches in the plan.
func (p *Plan) TotalBatches() int {
	return len(p.Batches)
}

// BatchFrames returns the frames shown during one rotation cycle of batch i:
// the T frame (batch 0 only), the B frame, then the D frames.
func (p *Plan) BatchFrames(i int) []string {
	if i < 0 || i >= len(p.Batches) {
		return nil
	}
	batch := p.Batches[i]

	frames := make([]string, 0, len(batch.Chunks)+2)
	if batch.Info.BatchNumber == 0 {
		frames = append(frames, EncodeTransmission(p.Info))
	}
	frames = append(frames, EncodeBatch(batch.Info))
	for _, chunk := range batch.Chunks {
		frames = append(frames, EncodeData(chunk))
	}
	return frames
}

// Frames returns every frame of the plan in display order.
func (p *Plan) Frames() []string {
	var frames []string
	for i := range p.Batches {
		frames = append(frames, p.BatchFrames(i)...)
	}
	return frames
}

// ChunkFrame returns the D frame for one chunk id, for targeted rescans.
func (p *Plan) ChunkFrame(chunkID int) (string, bool) {
	for _, batch := range p.Batches {
		if chunkID < batch.Info.StartChunk || chunkID > batch.Info.EndChunk {
			continue
		}
		return EncodeData(batch.Chunks[chunkID-batch.Info.StartChunk]), true
	}
	return "", false
}

