package chunker

import (
	"errors"
	"fmt"

	"github.com/dshills/vectorquery/pkg/types"
)

const (
	// DefaultChunkSize is the window size, in characters, used for query strings
	DefaultChunkSize = 2500

	// DefaultOverlapRatio is the fraction of a window repeated at the start of the next one
	DefaultOverlapRatio = 0.2
)

// ErrInvalidOverlap is returned when the overlap ratio is outside [0, 1).
var ErrInvalidOverlap = errors.New("overlap ratio must be in [0, 1)")

// StringChunker splits free text into overlapping fixed-size windows.
//
// A ChunkSize of zero or less disables splitting: the whole text becomes a
// single chunk.
type StringChunker struct {
	ChunkSize    int
	OverlapRatio float64
}

// New creates a StringChunker after validating its settings.
func New(chunkSize int, overlapRatio float64) (*StringChunker, error) {
	if overlapRatio < 0 || overlapRatio >= 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidOverlap, overlapRatio)
	}
	return &StringChunker{ChunkSize: chunkSize, OverlapRatio: overlapRatio}, nil
}

// Default returns a chunker using DefaultChunkSize and DefaultOverlapRatio.
func Default() *StringChunker {
	return &StringChunker{ChunkSize: DefaultChunkSize, OverlapRatio: DefaultOverlapRatio}
}

// Chunk splits text into windows. Offsets are rune positions.
func (c *StringChunker) Chunk(text string) []types.Chunk {
	runes := []rune(text)

	if c.ChunkSize <= 0 {
		return []types.Chunk{{Text: text, Start: 0, End: len(runes)}}
	}

	step := c.step()
	chunks := make([]types.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + c.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, types.Chunk{
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Segment chunks every query independently and flattens the chunk texts in
// input order.
func (c *StringChunker) Segment(queries []string) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		for _, chunk := range c.Chunk(q) {
			out = append(out, chunk.Text)
		}
	}
	return out
}

func (c *StringChunker) step() int {
	step := int(float64(c.ChunkSize) * (1 - c.OverlapRatio))
	if step < 1 {
		return 1
	}
	return step
}
