package services

import "github.com/verityops/compliance-backend/internal/ingestion/chunker"

// TextExtractor pulls plain text out of uploaded document bytes.
// *extractor.Extractor is the production implementation.
type TextExtractor interface {
	ExtractText(fileBytes []byte, filename string) (string, error)
}

// TextChunker splits extracted text into token-bounded chunks.
// *chunker.TextChunker is the production implementation.
type TextChunker interface {
	ChunkText(text string) []chunker.TextChunk
}
