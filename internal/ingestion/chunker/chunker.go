package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/verityops/compliance-backend/internal/platform/logger"
)

const (
	// encodingName is fixed so token counts are reproducible across runs.
	encodingName = "cl100k_base"

	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// TextChunk is one token-bounded window of a document's text.
type TextChunk struct {
	Content    string
	ChunkIndex int
	TokenCount int
}

// TextChunker splits text into token windows of ChunkSize with ChunkOverlap
// tokens shared between consecutive windows.
type TextChunker struct {
	ChunkSize    int
	ChunkOverlap int

	log *logger.Logger
	enc *tiktoken.Tiktoken
}

func New(log *logger.Logger, chunkSize, chunkOverlap int) (*TextChunker, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encodingName, err)
	}

	return &TextChunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		log:          log.With("service", "TextChunker"),
		enc:          enc,
	}, nil
}

// ChunkText splits text into windows of ChunkSize tokens, advancing
// ChunkSize-ChunkOverlap tokens per step. The final window may be shorter
// than ChunkSize; it is never padded. Empty or whitespace-only input yields
// no chunks.
func (c *TextChunker) ChunkText(text string) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := c.enc.Encode(text, nil, nil)
	totalTokens := len(tokens)

	if totalTokens <= c.ChunkSize {
		return []TextChunk{{
			Content:    text,
			ChunkIndex: 0,
			TokenCount: totalTokens,
		}}
	}

	var chunks []TextChunk
	chunkIndex := 0
	startIdx := 0

	for startIdx < totalTokens {
		endIdx := startIdx + c.ChunkSize
		if endIdx > totalTokens {
			endIdx = totalTokens
		}

		window := tokens[startIdx:endIdx]
		chunks = append(chunks, TextChunk{
			Content:    c.enc.Decode(window),
			ChunkIndex: chunkIndex,
			TokenCount: len(window),
		})

		if endIdx >= totalTokens {
			break
		}
		startIdx = endIdx - c.ChunkOverlap
		chunkIndex++
	}

	c.log.Debug("Text chunked",
		"total_tokens", totalTokens,
		"total_chunks", len(chunks),
		"chunk_size", c.ChunkSize,
		"chunk_overlap", c.ChunkOverlap,
	)

	return chunks
}

// CountTokens counts tokens under the chunker's fixed encoding.
func (c *TextChunker) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
