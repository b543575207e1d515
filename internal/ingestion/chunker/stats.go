package chunker

import "math"

// ChunkStatistics summarizes the token-count distribution of a chunk set.
// All fields are zero for an empty input.
type ChunkStatistics struct {
	TotalChunks       int     `json:"total_chunks"`
	TotalTokens       int     `json:"total_tokens"`
	AvgTokensPerChunk float64 `json:"avg_tokens_per_chunk"`
	MinTokens         int     `json:"min_tokens"`
	MaxTokens         int     `json:"max_tokens"`
	StdTokens         float64 `json:"std_tokens"`
}

func Statistics(chunks []TextChunk) ChunkStatistics {
	if len(chunks) == 0 {
		return ChunkStatistics{}
	}

	total := 0
	minTokens := chunks[0].TokenCount
	maxTokens := chunks[0].TokenCount
	for _, ch := range chunks {
		total += ch.TokenCount
		if ch.TokenCount < minTokens {
			minTokens = ch.TokenCount
		}
		if ch.TokenCount > maxTokens {
			maxTokens = ch.TokenCount
		}
	}

	mean := float64(total) / float64(len(chunks))

	variance := 0.0
	for _, ch := range chunks {
		d := float64(ch.TokenCount) - mean
		variance += d * d
	}
	variance /= float64(len(chunks))

	return ChunkStatistics{
		TotalChunks:       len(chunks),
		TotalTokens:       total,
		AvgTokensPerChunk: mean,
		MinTokens:         minTokens,
		MaxTokens:         maxTokens,
		StdTokens:         math.Sqrt(variance),
	}
}
