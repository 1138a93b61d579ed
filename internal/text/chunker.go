package text

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidWindow = errors.New("invalid chunk window")

// Chunk is one window of a source document.
type Chunk struct {
	SourceTitle string
	Index       int
	Text        string
}

// ID is the vector identifier of the chunk. It is stable across runs so a
// re-run overwrites the same datapoints.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s:%d", c.SourceTitle, c.Index)
}

// ChunkWords splits text on whitespace and emits overlapping windows of at
// most size tokens. Consecutive windows share overlap tokens. The final
// window is clamped to the end of the text, so the last token always lands
// in the last chunk and no window is emitted past it.
func ChunkWords(text string, size, overlap int) ([]string, error) {
	if overlap < 0 || size <= overlap {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidWindow, size, overlap)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := max(1, size-overlap)
	var chunks []string
	for start := 0; ; start += step {
		end := min(len(words), start+size)
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}

// Chunker applies a fixed window to whole documents.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) *Chunker {
	return &Chunker{Size: size, Overlap: overlap}
}

func (c *Chunker) Split(doc Document) ([]Chunk, error) {
	windows, err := ChunkWords(doc.Content, c.Size, c.Overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, 0, len(windows))
	for i, w := range windows {
		chunks = append(chunks, Chunk{SourceTitle: doc.Name, Index: i, Text: w})
	}
	return chunks, nil
}

// SplitAll chunks every document, preserving document then window order.
func (c *Chunker) SplitAll(docs []Document) ([]Chunk, error) {
	var all []Chunk
	for _, d := range docs {
		chunks, err := c.Split(d)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", d.Name, err)
		}
		all = append(all, chunks...)
	}
	return all, nil
}
