package services

import (
	"context"

	"github.com/verityops/compliance-backend/internal/clients/openai"
	"github.com/verityops/compliance-backend/internal/platform/apperr"
	"github.com/verityops/compliance-backend/internal/platform/envutil"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

const defaultEmbeddingBatchSize = 100

// EmbeddingService generates vectors in provider-sized batches. Output is
// index-aligned with the input across batch boundaries.
type EmbeddingService interface {
	GenerateEmbeddings(ctx context.Context, texts []string, batchSize int) ([][]float32, error)
	GenerateSingleEmbedding(ctx context.Context, text string) ([]float32, error)
}

type embeddingService struct {
	log       *logger.Logger
	client    openai.Client
	batchSize int
}

func NewEmbeddingService(log *logger.Logger, client openai.Client) EmbeddingService {
	return &embeddingService{
		log:       log.With("service", "EmbeddingService"),
		client:    client,
		batchSize: envutil.GetEnvAsInt("EMBEDDING_BATCH_SIZE", defaultEmbeddingBatchSize, log),
	}
}

// GenerateEmbeddings partitions texts into batches (batchSize <= 0 uses the
// configured default) and concatenates the per-batch vectors in order. Empty
// input returns empty output without any network call.
func (s *embeddingService) GenerateEmbeddings(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	all := make([][]float32, 0, len(texts))
	totalBatches := (len(texts) + batchSize - 1) / batchSize

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		s.log.Debug("Embedding batch",
			"batch_num", i/batchSize+1,
			"total_batches", totalBatches,
			"batch_size", len(batch),
		)

		vectors, err := s.client.Embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		// The client validates count per batch; re-check here so a broken
		// fake in a caller's test cannot silently misalign indices.
		if len(vectors) != len(batch) {
			return nil, &apperr.EmbeddingError{Msg: "batch returned wrong vector count"}
		}
		all = append(all, vectors...)
	}

	s.log.Info("Embeddings generated", "total_count", len(all))
	return all, nil
}

func (s *embeddingService) GenerateSingleEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.GenerateEmbeddings(ctx, []string{text}, 0)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
