package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/clients/pinecone"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

const defaultSearchTopK = 5

// SearchResult is one ranked policy chunk from a semantic search.
type SearchResult struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	PolicyID   uuid.UUID `json:"policy_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Score      float64   `json:"score"`
}

// SearchService runs semantic search across an organization's indexed
// policy chunks.
type SearchService struct {
	log      *logger.Logger
	embedder EmbeddingService
	vectors  pinecone.VectorStore
}

func NewSearchService(log *logger.Logger, embedder EmbeddingService, vectors pinecone.VectorStore) *SearchService {
	return &SearchService{
		log:      log.With("service", "SearchService"),
		embedder: embedder,
		vectors:  vectors,
	}
}

// SearchSimilar embeds the query and returns the organization's closest
// policy chunks, optionally restricted to one policy.
func (s *SearchService) SearchSimilar(ctx context.Context, orgID uuid.UUID, query string, topK int, policyID *uuid.UUID) ([]SearchResult, error) {
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	vector, err := s.embedder.GenerateSingleEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.vectors.QuerySimilar(ctx, orgID, vector, topK, policyID)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			ChunkID:    m.ChunkID,
			PolicyID:   m.PolicyID,
			ChunkIndex: m.ChunkIndex,
			Content:    m.Content,
			Score:      m.Score,
		})
	}

	s.log.Info("Semantic search completed",
		"org_id", orgID,
		"query_length", len(query),
		"results_count", len(results),
	)
	return results, nil
}
